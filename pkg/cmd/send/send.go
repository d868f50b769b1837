package send

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	pkgclient "github.com/stleox/caphub/pkg/client"
	"github.com/stleox/caphub/pkg/config"
	pkghub "github.com/stleox/caphub/pkg/hub"
	"github.com/stleox/caphub/pkg/integration"
	"github.com/stleox/caphub/pkg/protocol"
)

var (
	sendOpts struct {
		message string
		level   string
	}

	sendFlags = pflag.NewFlagSet("send", pflag.ContinueOnError)
)

func init() {
	sendFlags.StringVarP(&sendOpts.message, "message", "m", "caphub test event", "Message of the test event")
	sendFlags.StringVarP(&sendOpts.level, "level", "l", string(protocol.LevelInfo), "Severity of the test event (debug|info|warning|error|fatal)")
}

func New(vp *viper.Viper) *cobra.Command {
	send := &cobra.Command{
		Use:   "send",
		Short: "Send one test event through a real Hub, then flush and close",
		RunE: func(cmd *cobra.Command, args []string) error {
			options := config.NewOptions(vp)

			c, err := pkgclient.New(options, nil)
			if err != nil {
				return err
			}

			h, err := pkghub.NewHub(c, options,
				&integration.RuntimeContext{},
				&integration.LogrusBreadcrumbs{})
			if err != nil {
				return err
			}
			defer h.Close(config.DefaultShutdownTimeout)

			h.AddBreadcrumb(protocol.NewBreadcrumb("cli", "send command invoked"), nil)
			id := h.CaptureMessage(sendOpts.message, protocol.Level(sendOpts.level))
			if id == protocol.EmptyEventID {
				logrus.Warn("Caphub couldn't capture the test event")
			} else {
				logrus.Infof("Caphub captured test event: %s", id)
			}

			h.Flush(2 * time.Second)
			return nil
		},
	}
	send.Flags().AddFlagSet(sendFlags)
	return send
}
