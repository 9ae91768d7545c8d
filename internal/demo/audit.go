package demo

import (
	"log/slog"

	"github.com/forrst/forrst/internal/eventbus"
	"github.com/forrst/forrst/internal/extension"
)

// auditLogExtensionURN lives outside the reserved "cline" vendor, showing
// the URN shape a third-party extension author registers under.
const auditLogExtensionURN = "urn:demo:forrst:ext:audit-log"

// RegisterExtensions wires the audit-log extension: a global, advisory
// observer that logs every request's target function and protocol version
// on receipt.
func RegisterExtensions(extensions *extension.Registry, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	return extensions.Register(extension.Descriptor{
		URN:          auditLogExtensionURN,
		IsGlobal:     true,
		IsErrorFatal: false,
		Subscriptions: []extension.Subscription{
			{
				Event:    eventbus.EventRequestReceived,
				Priority: 100,
				Handler: func(ev *eventbus.Event) error {
					log.Info("request received",
						"function", ev.Request.Call.Function,
						"protocol_version", ev.Request.Protocol.Version,
					)
					return nil
				},
			},
		},
	})
}
