package algorand

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/algocheckout/checkout"
)

// AlgodNode adapts the algod REST client to checkout.NodeClient.
type AlgodNode struct {
	client  *algod.Client
	network checkout.NetworkID
}

var _ checkout.NodeClient = (*AlgodNode)(nil)

// NewAlgodNode opens an algod client for cfg. It matches checkout.NodeFactory.
func NewAlgodNode(cfg checkout.NetworkConfig) (checkout.NodeClient, error) {
	client, err := algod.MakeClient(cfg.Address(), cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client for %s: %w", cfg.ID, err)
	}
	return &AlgodNode{client: client, network: cfg.ID}, nil
}

func (n *AlgodNode) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	return n.client.SuggestedParams().Do(ctx)
}

func (n *AlgodNode) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	return n.client.SendRawTransaction(raw).Do(ctx)
}

func (n *AlgodNode) Status(ctx context.Context) (uint64, error) {
	status, err := n.client.Status().Do(ctx)
	if err != nil {
		return 0, err
	}
	return status.LastRound, nil
}

func (n *AlgodNode) StatusAfterRound(ctx context.Context, round uint64) (uint64, error) {
	status, err := n.client.StatusAfterBlock(round).Do(ctx)
	if err != nil {
		return 0, err
	}
	return status.LastRound, nil
}

func (n *AlgodNode) PendingTransaction(ctx context.Context, txID string) (checkout.PendingTransaction, error) {
	info, _, err := n.client.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		return checkout.PendingTransaction{}, err
	}
	return checkout.PendingTransaction{
		ConfirmedRound: info.ConfirmedRound,
		PoolError:      info.PoolError,
	}, nil
}
