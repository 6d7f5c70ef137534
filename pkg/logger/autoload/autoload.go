// Package autoload initializes the global logger from the environment on
// import. Blank-import it from main.
package autoload

import (
	configx "github.com/witbridge/nestbot/pkg/config"
	logx "github.com/witbridge/nestbot/pkg/logger"
)

func init() {
	conf := configx.MustNew[logx.Config]("LOG")
	logx.Init(*conf)
}
