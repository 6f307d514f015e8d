// Command baker runs a standalone block-producing agent against a
// trusted chain node.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/tolelom/tolbaker/baker"
	"github.com/tolelom/tolbaker/clock"
	"github.com/tolelom/tolbaker/config"
	"github.com/tolelom/tolbaker/crypto/certgen"
	"github.com/tolelom/tolbaker/events"
	"github.com/tolelom/tolbaker/history"
	"github.com/tolelom/tolbaker/nodeclient"
	"github.com/tolelom/tolbaker/storage"
	"github.com/tolelom/tolbaker/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "", "path to keystore file (overrides config's keystore_path)")
	genKey := flag.Bool("genkey", false, "generate a new delegate key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + client TLS certs into the given directory and exit")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("TOLBAKER_PASSWORD")
	if password == "" {
		log.Println("WARNING: TOLBAKER_PASSWORD not set — keystore will use an empty password")
	}

	if *genKey {
		runGenKey(*keyPath, password)
		return
	}

	if *genCerts != "" {
		runGenCerts(*cfgPath, *genCerts)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	keystorePath := cfg.KeystorePath
	if *keyPath != "" {
		keystorePath = *keyPath
	}

	preset := cfg.Preset()

	keys, err := wallet.Load(keystorePath, password)
	if err != nil {
		log.Fatalf("load keystore: %v", err)
	}
	log.Printf("Delegate: %s", keys.PublicKeyHash())

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}

	nonceDB, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "nonces"))
	if err != nil {
		log.Fatalf("open nonce store: %v", err)
	}
	defer nonceDB.Close()
	nonceStore := storage.NewNonceStore(nonceDB)

	historyDB, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "history"))
	if err != nil {
		log.Fatalf("open history store: %v", err)
	}
	defer historyDB.Close()

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for node RPC")
	}

	node := nodeclient.NewHTTPNodeClient(cfg.NodeURL, cfg.RPCAuthToken, tlsCfg)

	emitter := events.NewEmitter()
	events.AttachLogger(emitter)
	history.New(historyDB, emitter)

	ctrl := baker.NewController(node, keys, cfg.ChainName, preset, clock.RealClock{}, emitter, nonceStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.Run(ctx, cfg.PollInterval.Duration(), done)
	}()
	log.Printf("Baker running against %s (network: %s)", cfg.NodeURL, cfg.Network)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	close(done)
	cancel()
	wg.Wait()
	ctrl.Wait()
	log.Println("Shutdown complete.")
}

func runGenKey(keyPath, password string) {
	if keyPath == "" {
		keyPath = "baker.key"
	}
	w, err := wallet.Generate()
	if err != nil {
		log.Fatal(err)
	}
	if err := w.Save(keyPath, password); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Generated key. Delegate address: %s\n", w.PublicKeyHash())
	fmt.Printf("Saved to: %s\n", keyPath)
}

func runGenCerts(cfgPath, dir string) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := certgen.GenerateAll(dir, cfg.ChainName, nil); err != nil {
		log.Fatalf("gencerts: %v", err)
	}
	fmt.Printf("Certificates generated in %s\n", dir)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			cfg := config.DefaultConfig()
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	return cfg, nil
}
