// Command authcoredemo wires the authcore Engine to a Postgres-backed ORM
// adapter and exposes introspection, the public JWKS endpoint, and the
// step/session entry points over HTTP — enough to exercise every public
// Engine API entry point end to end. Structured the way the teacher wires
// its goctl-scaffolded REST entrypoints (services/gateway/growth/growthapi.go):
// flag -> conf.MustLoad -> rest.MustNewServer -> ServiceContext -> handlers.
package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/rest"

	"github.com/veyra/authcore/cmd/authcoredemo/internal/handler"
	"github.com/veyra/authcore/cmd/authcoredemo/internal/svc"
	"github.com/veyra/authcore/internal/config"
)

var configFile = flag.String("f", "etc/authcoredemo.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)
	config.ApplyEnvOverlay(&c)

	server := rest.MustNewServer(c.RestConf, rest.WithCors("*"))
	defer server.Stop()

	ctx, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	handler.RegisterHandlers(server, ctx)

	fmt.Printf("Starting authcoredemo at %s:%d...\n", c.Host, c.Port)
	server.Start()
}
