package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	offers "github.com/bntmzu/offers-go"
)

// CLI is the command tree. Settings come from OFFERS_API_* environment
// variables and an optional .env file.
type CLI struct {
	Debug bool `help:"Enable verbose logging."`

	Register        RegisterCmd        `cmd:"" help:"Register a product."`
	RegisterBatch   RegisterBatchCmd   `cmd:"" name:"register-batch" help:"Register products from a JSON file."`
	GetOffers       GetOffersCmd       `cmd:"" name:"get-offers" help:"Retrieve offers for a product."`
	GetOffersCached GetOffersCachedCmd `cmd:"" name:"get-offers-cached" help:"Retrieve offers, served from cache within the TTL."`
	ClearCache      ClearCacheCmd      `cmd:"" name:"clear-cache" help:"Clear the persisted access token."`
	DebugToken      DebugTokenCmd      `cmd:"" name:"debug-token" help:"Inspect the persisted access token."`
	TestAuth        TestAuthCmd        `cmd:"" name:"test-auth" help:"Exchange the refresh token for an access token."`
	Version         VersionCmd         `cmd:"" help:"Print version information."`
}

// runContext bundles what every command needs.
type runContext struct {
	log *logrus.Logger
}

func (c *CLI) newRunContext() *runContext {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if c.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return &runContext{log: log}
}

// registerBatchConcurrency bounds parallel registrations so batch runs stay
// inside the service's throttling.
const registerBatchConcurrency = 4

func newClient(rc *runContext) (*offers.Client, offers.Settings, error) {
	settings, err := offers.LoadSettings()
	if err != nil {
		return nil, settings, err
	}

	logger := offers.NewLogrusLogger(rc.log)
	cache := offers.NewInMemoryCache()
	client, err := offers.New(settings,
		offers.WithLogger(logger),
		offers.WithCache(cache),
		offers.WithHooks(
			offers.NewLoggingHook(logger),
			offers.NewCacheInvalidationHook(cache),
		),
	)
	if err != nil {
		return nil, settings, err
	}
	return client, settings, nil
}

// RegisterCmd registers a single product.
type RegisterCmd struct {
	ProductID   string `name:"product-id" required:"" help:"UUID of the product."`
	Name        string `required:"" help:"Product name."`
	Description string `required:"" help:"Product description."`
}

// Run implements the command.
func (cmd *RegisterCmd) Run(rc *runContext) error {
	if _, err := uuid.Parse(cmd.ProductID); err != nil {
		return fmt.Errorf("product-id must be a UUID: %w", err)
	}

	client, _, err := newClient(rc)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.RegisterProduct(context.Background(), offers.Product{
		ID:          cmd.ProductID,
		Name:        cmd.Name,
		Description: cmd.Description,
	})
	if err != nil {
		return err
	}
	rc.log.WithField("id", result.ID).Info("product registered")
	return nil
}

// RegisterBatchCmd registers every product listed in a JSON file.
type RegisterBatchCmd struct {
	File string `required:"" help:"Path to a JSON file holding a product list."`
}

// Run implements the command.
func (cmd *RegisterBatchCmd) Run(rc *runContext) error {
	raw, err := os.ReadFile(cmd.File)
	if err != nil {
		return err
	}
	var products []offers.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return fmt.Errorf("parsing %s: %w", cmd.File, err)
	}

	client, _, err := newClient(rc)
	if err != nil {
		return err
	}
	defer client.Close()

	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(registerBatchConcurrency)
	for _, product := range products {
		product := product
		group.Go(func() error {
			result, err := client.RegisterProduct(ctx, product)
			if err != nil {
				rc.log.WithField("id", product.ID).WithError(err).Error("registration failed")
				return err
			}
			rc.log.WithField("id", result.ID).Info("product registered")
			return nil
		})
	}
	return group.Wait()
}

// GetOffersCmd fetches the live offer listing for a product.
type GetOffersCmd struct {
	ProductID string `name:"product-id" required:"" help:"Product UUID."`
}

// Run implements the command.
func (cmd *GetOffersCmd) Run(rc *runContext) error {
	client, _, err := newClient(rc)
	if err != nil {
		return err
	}
	defer client.Close()

	listing, err := client.GetOffers(context.Background(), cmd.ProductID)
	if err != nil {
		return err
	}
	printOffers(rc, cmd.ProductID, listing)
	return nil
}

// GetOffersCachedCmd fetches the offer listing through the cache.
type GetOffersCachedCmd struct {
	ProductID string `name:"product-id" required:"" help:"Product UUID."`
}

// Run implements the command.
func (cmd *GetOffersCachedCmd) Run(rc *runContext) error {
	client, _, err := newClient(rc)
	if err != nil {
		return err
	}
	defer client.Close()

	listing, err := client.GetOffersCached(context.Background(), cmd.ProductID)
	if err != nil {
		return err
	}
	printOffers(rc, cmd.ProductID, listing)
	return nil
}

func printOffers(rc *runContext, productID string, listing []offers.Offer) {
	rc.log.WithFields(logrus.Fields{
		"productID": productID,
		"count":     len(listing),
	}).Info("offers retrieved")
	for _, offer := range listing {
		fmt.Printf("%s\tprice=%d\tavailable=%t\n", offer.ID, offer.Price, offer.Availability)
	}
}

// ClearCacheCmd drops the persisted access token.
type ClearCacheCmd struct{}

// Run implements the command.
func (cmd *ClearCacheCmd) Run(rc *runContext) error {
	settings, err := offers.LoadSettings()
	if err != nil {
		return err
	}
	store := offers.NewDiskTokenStore(settings.TokenCacheDir)
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("token cache cleared")
	return nil
}

// DebugTokenCmd inspects the persisted access token.
type DebugTokenCmd struct{}

// Run implements the command.
func (cmd *DebugTokenCmd) Run(rc *runContext) error {
	settings, err := offers.LoadSettings()
	if err != nil {
		return err
	}
	store := offers.NewDiskTokenStore(settings.TokenCacheDir)

	token, ok, err := store.Load()
	if err != nil {
		return fmt.Errorf("reading token cache: %w", err)
	}
	if !ok {
		return fmt.Errorf("no persisted token in %s", settings.TokenCacheDir)
	}

	remaining := time.Until(token.ExpiresAt)
	if remaining <= 0 {
		fmt.Printf("token expired at %s\n", token.ExpiresAt.Format(time.RFC3339))
		return nil
	}
	fmt.Printf("token valid until %s (%s remaining)\n", token.ExpiresAt.Format(time.RFC3339), remaining.Round(time.Second))
	fmt.Printf("token prefix: %.10s...\n", token.Value)
	return nil
}

// TestAuthCmd performs one token exchange and prints the result.
type TestAuthCmd struct {
	NoCache bool `name:"no-cache" help:"Skip the persisted token and force an exchange."`
}

// Run implements the command.
func (cmd *TestAuthCmd) Run(rc *runContext) error {
	settings, err := offers.LoadSettings()
	if err != nil {
		return err
	}

	var store offers.TokenStore
	if !cmd.NoCache {
		store = offers.NewDiskTokenStore(settings.TokenCacheDir)
	}
	manager := offers.NewTokenManager(settings, store)

	token, err := manager.Token(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("got token: %.20s... (valid until %s)\n", token.Value, token.ExpiresAt.Format(time.RFC3339))
	return nil
}

// VersionCmd prints build information.
type VersionCmd struct{}

// Run implements the command.
func (cmd *VersionCmd) Run(rc *runContext) error {
	fmt.Println(offers.GetVersion())
	return nil
}
