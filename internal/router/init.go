package router

import (
	userapp "github.com/taskhub/account-api/internal/application"
	"github.com/taskhub/account-api/internal/container"
	pginfra "github.com/taskhub/account-api/internal/infrastructure/postgres"
	handlers "github.com/taskhub/account-api/internal/interface/http"
	"github.com/taskhub/account-api/internal/router/modules"
	"github.com/taskhub/account-api/pkg/tokens"
)

// InitModules wires all feature modules from the container singletons and
// registers them with the router registry. Called once during startup.
func InitModules(r *Registry) {
	repo := pginfra.NewUserRepository(container.GetPGPool())
	tm := tokens.NewManager(container.GetConfig().TokenSecret, container.GetConfig().TokenTTL, repo)
	container.SetTokens(tm)

	service := userapp.NewService(
		repo,
		tm,
		container.GetRabbitPub(),
		container.GetLogger(),
		container.GetES(),
		container.GetConfig().ESUsersIndex,
	)
	handler := handlers.NewUserHandler(service, container.GetLogger())

	r.Add(modules.NewUserModule(handler, service, tm))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
