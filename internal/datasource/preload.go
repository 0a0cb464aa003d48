package datasource

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// preloadLimit bounds concurrent loads per sibling list.
const preloadLimit = 16

// Preload materializes deferred children down to depth levels below the
// roots (depth 1 loads the roots' children). Siblings load concurrently.
// Unchanged subtrees are shared with the input.
func Preload(ctx context.Context, roots []*model.Node, depth int, key tree.KeyFunc) ([]*model.Node, error) {
	if depth <= 0 {
		return roots, nil
	}
	if key == nil {
		key = tree.DefaultKey
	}
	out, _, err := preload(ctx, roots, nil, nil, depth, key)
	if err != nil {
		return roots, err
	}
	return out, nil
}

func preload(ctx context.Context, nodes []*model.Node, parentPath model.Path, lsc []int, depth int, key tree.KeyFunc) ([]*model.Node, bool, error) {
	out := make([]*model.Node, len(nodes))
	changed := make([]bool, len(nodes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadLimit)

	for i, n := range nodes {
		out[i] = n
		if n == nil {
			continue
		}
		path := parentPath.Child(key(tree.KeyArgs{Node: n, Index: i, ParentPath: parentPath}))
		rowLSC := append(append([]int(nil), lsc...), len(nodes)-i-1)

		g.Go(func() error {
			updated := n
			if n.IsLazy() {
				kids, err := resolve(ctx, n, path, rowLSC)
				if err != nil {
					return err
				}
				updated = n.WithChildren(kids)
			}
			if depth > 1 && updated.HasChildren() {
				kids, kidsChanged, err := preload(ctx, updated.Children, path, rowLSC, depth-1, key)
				if err != nil {
					return err
				}
				if kidsChanged {
					if updated == n {
						updated = n.Clone()
					}
					updated.Children = kids
				}
			}
			out[i] = updated
			changed[i] = updated != n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nodes, false, err
	}
	for _, c := range changed {
		if c {
			return out, true, nil
		}
	}
	return nodes, false, nil
}

// resolve invokes a deferred handle and waits for its first Done call.
func resolve(ctx context.Context, n *model.Node, path model.Path, lsc []int) ([]*model.Node, error) {
	ch := make(chan []*model.Node, 1)
	n.Load(model.LoadRequest{
		Node:               n,
		Path:               path,
		LowerSiblingCounts: lsc,
		TreeIndex:          tree.NoTreeIndex,
		Done: func(children []*model.Node) {
			select {
			case ch <- children:
			default:
			}
		},
	})
	select {
	case kids := <-ch:
		return kids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
