// Package bootstrap is the facilitator's composition root: it turns a
// loaded internal/config.Config into a running x402.x402Facilitator by
// dialing one signer per configured chain and registering the matching
// exact-scheme handler for that chain's namespace. Grounded on
// original_source/r402-facilitator/src/local.rs's FacilitatorLocal
// (SchemeRegistry::build wiring chain configs to scheme handlers) and
// config.rs's ChainConfig.effective_signer_keys (see DESIGN.md).
package bootstrap

import (
	"context"
	"fmt"
	"time"

	x402 "github.com/qntx/x402"
	"github.com/qntx/x402/internal/config"
	"github.com/qntx/x402/internal/evmsigner"
	"github.com/qntx/x402/internal/facilitatorhttp"
	"github.com/qntx/x402/internal/logging"
	"github.com/qntx/x402/internal/svmsigner"
	evmfacilitator "github.com/qntx/x402/mechanisms/evm/exact/facilitator"
	evmfacilitatorv1 "github.com/qntx/x402/mechanisms/evm/exact/v1/facilitator"
	svmfacilitator "github.com/qntx/x402/mechanisms/svm/exact/facilitator"
)

// BuildFacilitator dials a signer for every chain in cfg.Chains and
// registers exact-scheme handlers for it on a fresh facilitator core (V1
// and V2 for eip155 chains, V2 only for solana chains), each
// scoped to that chain's own CAIP-2 network (not a namespace
// wildcard) since each signer only has keys and an RPC endpoint for one
// chain. The concrete x402.x402Facilitator type is unexported, so the
// return type is the facilitatorhttp.FacilitatorCore interface it
// satisfies (Verify/Settle/GetSupported), which is all callers need.
func BuildFacilitator(ctx context.Context, cfg *config.Config) (facilitatorhttp.FacilitatorCore, error) {
	f := x402.Newx402Facilitator()

	for name, chain := range cfg.Chains {
		network := x402.Network(name)
		id, err := x402.ParseChainId(name)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: chain %q: %w", name, err)
		}

		keys := effectiveSignerKeys(chain)
		if len(keys) == 0 {
			return nil, fmt.Errorf("bootstrap: chain %q: no signer keys configured", name)
		}

		switch id.Namespace {
		case "eip155":
			timeout := time.Duration(chain.TimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			signer, err := evmsigner.New(ctx, chain.RPCURL, keys, timeout)
			if err != nil {
				return nil, fmt.Errorf("bootstrap: chain %q: %w", name, err)
			}

			evmConfig := &evmfacilitator.ExactEvmSchemeConfig{DeployERC4337WithEIP6492: cfg.DeployERC4337WithEIP6492}
			f.Register([]x402.Network{network}, evmfacilitator.NewExactEvmScheme(signer, evmConfig))

			v1Config := &evmfacilitatorv1.ExactEvmSchemeV1Config{DeployERC4337WithEIP6492: cfg.DeployERC4337WithEIP6492}
			f.RegisterV1([]x402.Network{network}, evmfacilitatorv1.NewExactEvmSchemeV1(signer, v1Config))

			logging.L.Info().Str("chain", name).Int("signers", len(keys)).Msg("bootstrap: wired evm exact scheme")

		case "solana":
			signer, err := svmsigner.New(keys[0], chain.RPCURL)
			if err != nil {
				return nil, fmt.Errorf("bootstrap: chain %q: %w", name, err)
			}
			f.Register([]x402.Network{network}, svmfacilitator.NewExactSvmScheme(signer))

			logging.L.Info().Str("chain", name).Msg("bootstrap: wired solana exact scheme")

		default:
			return nil, fmt.Errorf("bootstrap: chain %q: unsupported namespace %q", name, id.Namespace)
		}
	}

	return f, nil
}

// effectiveSignerKeys mirrors ChainConfig::effective_signer_keys in the
// original Rust facilitator: it returns the multi-key list, or nil when the
// list is empty. ChainConfig has no legacy single-key field to fall back to.
func effectiveSignerKeys(c config.ChainConfig) []string {
	if len(c.SignerPrivateKeys) > 0 {
		return c.SignerPrivateKeys
	}
	return nil
}
