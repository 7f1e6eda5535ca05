package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title SiteSense API
// @version 0.1
// @description Interactive documentation for the SiteSense audit API surface.
// @contact.name SiteSense Maintainers
// @contact.url https://github.com/sitesense/sitesense
// @BasePath /
