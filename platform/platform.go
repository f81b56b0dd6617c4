// Package platform assembles the settlement core: it opens the settlement
// database, wires the splitter factory, the royalty registry and the
// marketplace over one bank and one name ledger, and grants the permissions
// the components need to talk to each other.
package platform

import (
	"fmt"
	"os"

	"go.etcd.io/bbolt"

	"github.com/bitnsorg/libbitns-go/config"
	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/market"
	"github.com/bitnsorg/libbitns-go/nft"
	"github.com/bitnsorg/libbitns-go/registry"
	"github.com/bitnsorg/libbitns-go/splitter"
)

// CollectionID is the id the name collection is registered under in the
// marketplace.
const CollectionID = "names"

// Key derivation labels for the platform's own addresses.
const (
	registryAddrInfo = "bitns-registry"
	marketAddrInfo   = "bitns-market"
)

// Platform is the assembled settlement core.
type Platform struct {
	Config    config.Config
	Bank      funds.Bank
	Names     nft.Ledger
	Splitters *splitter.Factory
	Registry  *registry.Registry
	Market    *market.Market

	db *bbolt.DB // closed by Close()
}

// Open validates the configuration, opens the settlement database and wires
// the components together. The seed derives the platform's internal
// addresses, so the same seed over the same database restores the same
// deployment.
func Open(cfg config.Config, bank funds.Bank, names nft.Ledger, seed []byte) (*Platform, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if bank == nil || names == nil {
		return nil, fmt.Errorf("platform: bank and name ledger are required")
	}

	admin := funds.Address(cfg.Admin)
	treasury := funds.Address(cfg.Treasury)
	feeTreasury := funds.Address(cfg.FeeTreasury)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("platform: create data dir: %w", err)
	}
	db, err := bbolt.Open(cfg.DatabasePath(), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: open database: %w", err)
	}

	p, err := assemble(cfg, db, bank, names, seed, admin, treasury, feeTreasury)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func assemble(cfg config.Config, db *bbolt.DB, bank funds.Bank, names nft.Ledger, seed []byte, admin, treasury, feeTreasury funds.Address) (*Platform, error) {
	splitterStore, err := splitter.NewBoltStore(db)
	if err != nil {
		return nil, err
	}
	factory, err := splitter.NewFactory(bank, splitterStore, seed, admin)
	if err != nil {
		return nil, fmt.Errorf("platform: init splitter factory: %w", err)
	}

	registryAddr, err := funds.DeriveAddress(seed, 0, registryAddrInfo)
	if err != nil {
		return nil, fmt.Errorf("platform: derive registry address: %w", err)
	}
	marketAddr, err := funds.DeriveAddress(seed, 0, marketAddrInfo)
	if err != nil {
		return nil, fmt.Errorf("platform: derive market address: %w", err)
	}

	registryStore, err := registry.NewBoltStore(db)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(registry.Options{
		Address: registryAddr,
		Bank:    bank,
		Names:   names,
		Store:   registryStore,
		Admin:   admin,
		Default: registry.RoyaltyInfo{Receiver: treasury, Bps: cfg.DefaultRoyaltyBps},
		Lookup: func(addr funds.Address) (registry.TokenDepositor, bool) {
			sp, ok := factory.SplitterAt(addr)
			if !ok {
				return nil, false
			}
			return sp, true
		},
		Splitters: func(creator, treasury funds.Address, creatorBps, treasuryBps uint32) (funds.Address, error) {
			sp, err := factory.CreateSplitter(creator, treasury, creatorBps, treasuryBps)
			if err != nil {
				return funds.NullAddress, err
			}
			return sp.Address(), nil
		},
		Treasury:      treasury,
		CreatorShare:  cfg.CreatorShareBps,
		TreasuryShare: cfg.TreasuryShareBps,
	})
	if err != nil {
		return nil, fmt.Errorf("platform: init registry: %w", err)
	}

	marketStore, err := market.NewBoltStore(db)
	if err != nil {
		return nil, err
	}
	mkt, err := market.New(market.Options{
		Address:     marketAddr,
		Bank:        bank,
		Store:       marketStore,
		Admin:       admin,
		FeeTreasury: feeTreasury,
		FeeBps:      cfg.MarketFeeBps,
		Lookup: func(addr funds.Address) (market.TokenDepositor, bool) {
			sp, ok := factory.SplitterAt(addr)
			if !ok {
				return nil, false
			}
			return sp, true
		},
	})
	if err != nil {
		return nil, fmt.Errorf("platform: init market: %w", err)
	}

	// the marketplace resolves royalties against the registry and reports
	// its sales back into the registry's history
	if err := mkt.RegisterCollection(admin, CollectionID, market.Collection{
		Ledger:    names,
		Royalties: reg,
		Recorder:  reg,
	}); err != nil {
		return nil, fmt.Errorf("platform: register collection: %w", err)
	}
	if err := reg.GrantSettler(admin, mkt.Address()); err != nil {
		return nil, fmt.Errorf("platform: grant settler: %w", err)
	}

	return &Platform{
		Config:    cfg,
		Bank:      bank,
		Names:     names,
		Splitters: factory,
		Registry:  reg,
		Market:    mkt,
		db:        db,
	}, nil
}

// Close releases the settlement database.
func (p *Platform) Close() error {
	return p.db.Close()
}
