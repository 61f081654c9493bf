package publisher

import (
	"context"
	"fmt"

	"docflow/internal/workspace"
)

// RemoteIndex maps stable node identifiers to their remote pages.
type RemoteIndex map[string]workspace.RemotePage

// BuildRemoteIndex walks the remote subtree under rootID and indexes every
// managed page by its node identifier. Pages without the identifying
// property were created by humans; they are neither indexed nor descended
// into, so they can never be adopted or overwritten.
func BuildRemoteIndex(ctx context.Context, svc Service, rootID string) (RemoteIndex, error) {
	index := make(RemoteIndex)
	if err := indexSubtree(ctx, svc, rootID, index); err != nil {
		return nil, err
	}
	return index, nil
}

func indexSubtree(ctx context.Context, svc Service, pageID string, index RemoteIndex) error {
	children, err := svc.ListChildren(ctx, pageID)
	if err != nil {
		return fmt.Errorf("listing children of %s: %w", pageID, err)
	}
	for _, page := range children {
		if !page.Managed() {
			continue
		}
		index[page.NodeID] = page
		if err := indexSubtree(ctx, svc, page.ID, index); err != nil {
			return err
		}
	}
	return nil
}
