package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stleox/caphub/pkg/cmd/monitor"
	"github.com/stleox/caphub/pkg/cmd/send"
	"github.com/stleox/caphub/pkg/config"
)

func init() {
	// debug flag
	pflag.BoolVar(&config.Debug, "debug", false, "Enable debug mode")
}

// NewViper creates a new viper instance configured.
func NewViper() *viper.Viper {
	vp := viper.New()

	// read config from a file
	vp.SetConfigName("config") // name of config file (without extension)
	vp.SetConfigType("yaml")   // useful if the given config file does not have the extension in the name
	vp.AddConfigPath(".")      // look for a config in the working directory first

	// read config from environment variables
	vp.SetEnvPrefix("caphub") // env var must start with CAPHUB_
	// replace - by _ for environment variable names
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv() // read in environment variables that match
	return vp
}

func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "caphub",
		Short: "caphub",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if config.Debug {
				logrus.Info("enabled debug mode")
			} else {
				logrus.Info("disabled debug mode")
			}
			return nil
		},
	}
	return root
}

func Execute() {
	// 全局初始化 VP 配置
	vp := NewViper()

	root := New(vp)
	root.AddCommand(send.New(vp))
	root.AddCommand(monitor.New(vp))

	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
