package service

import (
	"context"
	"log/slog"

	"github.com/ohcore/fbekeyd/internal/config"
	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
)

// KMSGateway wraps a SoftwareGateway, using an external KMS only to unwrap
// the device trust root once at boot; per-alias sealing still happens in
// software against the recovered root, mirroring the teacher stack's own
// two-tier design (KMS unwraps the root secret, software seals everything
// derived from it).
type KMSGateway struct {
	*SoftwareGateway
	logger *slog.Logger
}

// NewKMSGateway loads the trust root chain from cfg (auto-detecting
// KMS-wrapped vs legacy plaintext mode), and builds a SoftwareGateway
// sealing under its active key.
func NewKMSGateway(
	ctx context.Context,
	cfg *config.Config,
	kmsService keystoreDomain.KMSService,
	aeadManager AEADManager,
	alg keystoreDomain.Algorithm,
	logger *slog.Logger,
) (*KMSGateway, error) {
	chain, err := keystoreDomain.LoadTrustRootChain(ctx, cfg, kmsService, logger)
	if err != nil {
		return nil, err
	}
	defer chain.Close()

	active, ok := chain.Get(chain.ActiveTrustRootID())
	if !ok {
		return nil, keystoreDomain.ErrActiveTrustRootNotFound
	}

	sw, err := NewSoftwareGateway(aeadManager, alg, active.Key)
	if err != nil {
		return nil, err
	}

	return &KMSGateway{SoftwareGateway: sw, logger: logger}, nil
}
