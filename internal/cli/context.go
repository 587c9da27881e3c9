// Package cli provides the command-line interface for the cvscout application.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/cvscout/cvscout/internal/app"
)

// SetApp stores the Application for commands to access.
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	globalApp = a
}

// GetApp retrieves the Application.
func GetApp() *app.Application {
	return globalApp
}

// GetAppFromCmd retrieves the Application associated with a command.
func GetAppFromCmd(cmd *cobra.Command) *app.Application {
	return globalApp
}

// Global reference - temporary until full context passing is implemented
var globalApp *app.Application
