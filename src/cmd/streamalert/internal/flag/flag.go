package flag

import (
	"os"

	"github.com/alecthomas/kingpin"

	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/consts"
)

var (
	app = kingpin.New(consts.AppName, "A live-status poller that alerts on stream transitions.").
		Version(consts.AppVersion)

	Debug           = app.Flag("debug", "Enable debug mode.").Default("false").Bool()
	Conf            = app.Flag("config", "Path to the config file.").Short('c').String()
	Interval        = app.Flag("interval", "Poll interval in seconds.").Default("3600").Int()
	InitialDelay    = app.Flag("initial-delay", "Delay before the first poll pass in seconds.").Default("10").Int()
	Concurrency     = app.Flag("concurrency", "Maximum parallel platform checks.").Default("5").Int()
	DetectionPolicy = app.Flag("detection-policy", "Field driving change alerts while live (category or title).").
			Default(string(configs.DetectByCategory)).String()
	DatabasePath = app.Flag("database", "Path to the SQLite database file.").Default("data/streamalert.db").String()
	RPCBind      = app.Flag("rpc-bind", "HTTP API bind address.").Default(":8080").String()
)

// Parse consumes os.Args. Must run before any flag value is read.
func Parse() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
}

// GenConfigFromFlags builds a configuration from command line flags
// alone, used when no config file is given.
func GenConfigFromFlags() *configs.Config {
	config := configs.NewConfig()
	config.Debug = *Debug
	config.Interval = *Interval
	config.InitialDelay = *InitialDelay
	config.Concurrency = *Concurrency
	config.DetectionPolicy = configs.DetectionPolicy(*DetectionPolicy)
	config.DatabasePath = *DatabasePath
	config.RPC.Bind = *RPCBind
	return config
}
