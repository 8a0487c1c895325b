package main

import (
	"io"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/nhle/pi-productivity/internal/config"
	"github.com/nhle/pi-productivity/internal/credential"
	"github.com/nhle/pi-productivity/internal/source/motion"
	"github.com/nhle/pi-productivity/internal/store"
)

// openCredentials opens the keyring used for the API key.
var openCredentials = credential.Open

// app lazily opens the resources a command needs.
type app struct {
	cfg   *config.AppConfig
	flags *flag.FlagSet
	out   io.Writer
	store *store.SQLiteStore
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.cfg.DB.Path, store.WithLocation(a.cfg.Location()))
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// client builds the remote client. When no key is configured the keyring
// is consulted; a client without a key fails every call with
// source.ErrMissingAPIKey.
func (a *app) client() *motion.Client {
	key := a.cfg.Motion.APIKey
	if key == "" {
		creds, err := openCredentials()
		if err != nil {
			log.Warn().Err(err).Msg("keyring unavailable")
		} else if key, err = creds.ResolveAPIKey(""); err != nil {
			log.Warn().Err(err).Msg("reading API key from keyring")
		}
	}

	return motion.NewClient(motion.Config{
		BaseURL:     a.cfg.Motion.BaseURL,
		APIKey:      key,
		WorkspaceID: a.cfg.Motion.WorkspaceID,
		Timeout:     a.cfg.Motion.Timeout,
	})
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		log.Err(err).Msg("closing store")
	}
}
