package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kotrzina/flower-cart/pkg/cart"
	"github.com/kotrzina/flower-cart/pkg/price"
	"github.com/kotrzina/flower-cart/pkg/utils"
)

// maxProblems limits the number of problems in one message
const maxProblems = 10

// Discord sends notifications to a Discord webhook.
// An empty hook URL disables sending.
type Discord struct {
	hookURL string
	client  *http.Client
}

func New(hookURL string) *Discord {
	return &Discord{
		hookURL: hookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *Discord) Enabled() bool {
	return d.hookURL != ""
}

func (d *Discord) SendMismatch(category string, r cart.Reconciliation) error {
	message := fmt.Sprintf("🛒	**El total del carrito no cuadra** (%s)\nEsperado: %s\nMostrado: %s\nDiferencia: %s",
		category,
		price.Format(r.Expected),
		price.Format(r.Displayed),
		price.Format(r.Difference),
	)
	return d.sendWebhook(message)
}

func (d *Discord) SendProblems(at time.Time, problems []string) error {
	if len(problems) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🌹	**Revisión del catálogo %s: %d problemas**\n", utils.FormatDate(at), len(problems)))
	for i, problem := range problems {
		if i == maxProblems {
			sb.WriteString(fmt.Sprintf("… y %d más\n", len(problems)-maxProblems))
			break
		}
		sb.WriteString("- " + problem + "\n")
	}

	return d.sendWebhook(sb.String())
}

func (d *Discord) sendWebhook(message string) error {
	if !d.Enabled() {
		return nil
	}

	body := struct {
		Content string `json:"content"`
	}{
		Content: message,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not marshal data for Discord webhook")
	}
	data := bytes.NewBuffer(jsonData)

	resp, err := d.client.Post(d.hookURL, "application/json", data)
	if err != nil {
		return fmt.Errorf("could not send Discord webhook: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("invalid response code from Discord webhook: %d", resp.StatusCode)
	}

	return nil
}
