// Package routes names the dashboard route surface shared by the guard,
// the controller and the HTTP server.
package routes

const (
	// Login is the public entry point.
	Login = "/login"
	// Dashboard is the default authenticated landing page.
	Dashboard = "/dashboard"
)
