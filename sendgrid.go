package ipupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// DefaultSendGridHost is the SendGrid API root.
const DefaultSendGridHost = "https://api.sendgrid.com"

// SendGridConfig holds what is needed to send notification emails through SendGrid.
type SendGridConfig struct {
	APIKey string
	// Host defaults to DefaultSendGridHost.
	Host string
	From string
	To   string
}

func newSendGridNotifier(cfg SendGridConfig) (*sendGridNotifier, error) {
	var errs []error
	if cfg.APIKey == "" {
		errs = append(errs, errors.New("sendgrid API key cannot be empty"))
	}
	if cfg.From == "" {
		errs = append(errs, errors.New("sender address cannot be empty"))
	}
	if cfg.To == "" {
		errs = append(errs, errors.New("recipient address cannot be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = DefaultSendGridHost
	}
	return &sendGridNotifier{
		cfg:    cfg,
		client: &rest.Client{HTTPClient: http.DefaultClient},
		logger: discard,
	}, nil
}

// sendGridNotifier implements ipupdate.Notifier with the SendGrid v3 mail send API.
type sendGridNotifier struct {
	cfg    SendGridConfig
	client *rest.Client
	logger logrus.FieldLogger
}

func (n *sendGridNotifier) SetHTTPClient(hc *http.Client) { n.client = &rest.Client{HTTPClient: hc} }
func (n *sendGridNotifier) SetLogger(l logrus.FieldLogger)  { n.logger = l }

// Notify implements ipupdate.Notifier.
func (n *sendGridNotifier) Notify(ctx context.Context, subject, html string) error {
	m := mail.NewSingleEmail(mail.NewEmail("", n.cfg.From), subject, mail.NewEmail("", n.cfg.To), "", html)

	req := sendgrid.GetRequest(n.cfg.APIKey, "/v3/mail/send", n.cfg.Host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(m)

	resp, err := n.client.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	n.logger.Debugf("email %q sent to %s", subject, n.cfg.To)
	return nil
}
