package cli

// GlobalOptions are shared flags that apply across commands.
type GlobalOptions struct {
	ConfigFile  string
	LogLevel    string
	LogFormat   string
	ScenarioDir string
}

var globalOpts = GlobalOptions{}
