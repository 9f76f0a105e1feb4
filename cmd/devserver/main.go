package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"libchat/internal/auth"
	"libchat/internal/config"
	"libchat/internal/server"
	"libchat/internal/store"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)
	st := store.New()

	tokenCfg := auth.TokenConfig{
		Secret:        cfg.MasterSecret,
		AccessExpiry:  cfg.AccessExpiry,
		RefreshExpiry: cfg.RefreshExpiry,
		Issuer:        "libchat",
	}

	router := server.NewRouter(server.Deps{Store: st, TokenConfig: tokenCfg})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
