package ipupdate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/netip"

	"github.com/sirupsen/logrus"
)

type message struct {
	subject string
	html    string
}

func subjectFor(d DomainConfig) string {
	return fmt.Sprintf("DNS Record Update for %s", d.Name)
}

func updateSuccess(d DomainConfig, ip netip.Addr) message {
	return message{
		subject: subjectFor(d),
		html:    fmt.Sprintf("Domain DNS %s Record updated: %s", d.Type(), html.EscapeString(ip.String())),
	}
}

// updateFailure includes the provider's reply as it was received when there is one.
func updateFailure(d DomainConfig, err error) message {
	detail := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		detail = apiErr.Body
	}
	return message{
		subject: subjectFor(d),
		html:    fmt.Sprintf("Error updating domain DNS %s record:<br>\n<pre>%s</pre>", d.Type(), html.EscapeString(detail)),
	}
}

func lookupFailure(d DomainConfig, err error) message {
	return message{
		subject: subjectFor(d),
		html: fmt.Sprintf("Unable to determine DNS %s record state for %s:<br>\n<pre>%s</pre>",
			d.Type(), html.EscapeString(d.Name), html.EscapeString(err.Error())),
	}
}

// logNotifier stands in when email isn't configured.
type logNotifier struct {
	logger logrus.FieldLogger
}

func (n *logNotifier) SetLogger(l logrus.FieldLogger) { n.logger = l }

// Notify implements ipupdate.Notifier.
func (n *logNotifier) Notify(_ context.Context, subject, body string) error {
	if n.logger != nil {
		n.logger.Infof("email notifications are disabled, not sending %q: %s", subject, body)
	}
	return nil
}
