//go:build e2e

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotrzina/flower-cart/pkg/config"
	"github.com/kotrzina/flower-cart/pkg/hook"
	"github.com/kotrzina/flower-cart/pkg/prometheus"
)

// Run with: go test -tags e2e ./pkg/browser/
// Browsers have to be installed: go run github.com/playwright-community/playwright-go/cmd/playwright install chromium

type fakeProduct struct {
	slug  string
	name  string
	price int
}

var fakeProducts = []fakeProduct{
	{"rosas-rojas", "Ramo de Rosas Rojas", 120000},
	{"orquidea-blanca", "Orquídea Blanca", 85500},
	{"tulipanes", "Tulipanes", 89900},
}

// fakeShop renders WooCommerce like pages without JavaScript.
// totalOffset is added to the displayed cart total, failAdd rejects adding that product
// and brokenMenu points the category menu link to a page without products.
type fakeShop struct {
	mux         sync.Mutex
	cart        map[string]int
	totalOffset int
	failAdd     string
	brokenMenu  bool
}

func cop(n int) string {
	s := fmt.Sprintf("%d", n)
	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	return "$" + strings.Join(groups, ".")
}

func (f *fakeShop) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		link := "/product-category/amor/"
		if f.brokenMenu {
			link = "/pagina-rota/"
		}
		_, _ = fmt.Fprintf(w, `<html><body><nav><a href="/">Inicio</a><a href="%s">Amor</a></nav></body></html>`, link)
	})

	mux.HandleFunc("/product-category/amor/", func(w http.ResponseWriter, _ *http.Request) {
		var sb strings.Builder
		sb.WriteString(`<html><body><h1 class="page-title">Amor</h1><ul class="products">`)
		for _, p := range fakeProducts {
			sb.WriteString(fmt.Sprintf(`<li class="product"><a href="/producto/%s/" class="woocommerce-LoopProduct-link">
				<h2 class="woocommerce-loop-product__title">%s</h2>
				<span class="price"><span class="woocommerce-Price-amount amount"><bdi>%s</bdi></span></span></a></li>`,
				p.slug, p.name, cop(p.price)))
		}
		sb.WriteString(`</ul></body></html>`)
		_, _ = fmt.Fprint(w, sb.String())
	})

	mux.HandleFunc("/producto/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/producto/"), "/")
		for _, p := range fakeProducts {
			if p.slug != slug {
				continue
			}
			_, _ = fmt.Fprintf(w, `<html><body><h1 class="product_title">%s</h1>
				<div class="summary"><p class="price"><span class="woocommerce-Price-amount amount"><bdi>%s</bdi></span></p>
				<p class="stock in-stock">Disponible</p>
				<form class="cart" method="post" action="/add_to_cart/">
				<input type="hidden" name="product" value="%s">
				<input type="number" class="qty" name="quantity" value="1">
				<button type="submit" class="single_add_to_cart_button">Añadir al carrito</button>
				</form></div></body></html>`, p.name, cop(p.price), p.slug)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/add_to_cart/", func(w http.ResponseWriter, r *http.Request) {
		if f.failAdd != "" && r.FormValue("product") == f.failAdd {
			http.Error(w, "Error interno", http.StatusInternalServerError)
			return
		}

		f.mux.Lock()
		f.cart[r.FormValue("product")]++
		f.mux.Unlock()
		http.Redirect(w, r, "/carrito/", http.StatusSeeOther)
	})

	mux.HandleFunc("/carrito/", func(w http.ResponseWriter, r *http.Request) {
		f.mux.Lock()
		defer f.mux.Unlock()

		if remove := r.URL.Query().Get("remove_item"); remove != "" {
			delete(f.cart, remove)
			http.Redirect(w, r, "/carrito/", http.StatusSeeOther)
			return
		}

		var sb strings.Builder
		sb.WriteString(`<html><body><h1>Carrito</h1>`)
		if len(f.cart) == 0 {
			sb.WriteString(`<p class="cart-empty woocommerce-info">Tu carrito está vacío.</p></body></html>`)
			_, _ = fmt.Fprint(w, sb.String())
			return
		}

		slugs := make([]string, 0, len(f.cart))
		for slug := range f.cart {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)

		total := 0
		sb.WriteString(`<table>`)
		for _, slug := range slugs {
			for _, p := range fakeProducts {
				if p.slug != slug {
					continue
				}
				total += p.price * f.cart[slug]
				sb.WriteString(fmt.Sprintf(`<tr class="woocommerce-cart-form__cart-item cart_item">
					<td class="product-remove"><a class="remove" href="/carrito/?remove_item=%s">×</a></td>
					<td class="product-name"><a href="/producto/%s/">%s</a></td>
					<td class="product-price"><span class="woocommerce-Price-amount amount"><bdi>%s</bdi></span></td>
					<td class="product-quantity"><input type="number" value="%d"></td></tr>`,
					slug, slug, p.name, cop(p.price), f.cart[slug]))
			}
		}
		sb.WriteString(fmt.Sprintf(`</table><div class="cart_totals"><table>
			<tr class="order-total"><td><span class="woocommerce-Price-amount amount"><bdi>%s</bdi></span></td></tr>
			</table></div></body></html>`, cop(total+f.totalOffset)))
		_, _ = fmt.Fprint(w, sb.String())
	})

	return mux
}

func launchTestSession(t *testing.T, shop *fakeShop, discordURL string) (*Session, *prometheus.Monitor) {
	t.Helper()

	server := httptest.NewServer(shop.handler())
	t.Cleanup(server.Close)

	profile, err := config.LoadProfile("")
	require.NoError(t, err)
	profile.BaseURL = server.URL
	profile.AddToCartMarker = "add_to_cart"
	profile.Timeouts = config.Timeouts{Short: time.Second, Medium: 2 * time.Second, Long: 3 * time.Second}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	monitor := prometheus.New()
	session, err := Launch(profile, Options{
		Headless:      true,
		ScreenshotDir: t.TempDir(),
		Discord:       hook.New(discordURL),
		Monitor:       monitor,
		Logger:        logger,
	})
	if err != nil {
		t.Skipf("Skipping test: could not launch browser: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	return session, monitor
}

func TestCartScenario(t *testing.T) {
	shop := &fakeShop{cart: map[string]int{"tulipanes": 1}}
	session, _ := launchTestSession(t, shop, "")

	result, err := RunCartScenario(context.Background(), session, config.Category{Name: "Amor", Path: "/product-category/amor/"}, 2)
	require.NoError(t, err)

	require.Len(t, result.Added, 2)
	assert.Equal(t, "Ramo de Rosas Rojas", result.Added[0].Name)
	assert.Equal(t, "Orquídea Blanca", result.Added[1].Name)
	require.NotNil(t, result.Reconciliation)
	assert.True(t, result.Reconciliation.Matches)
	assert.Equal(t, "205500.00", result.Reconciliation.Expected.StringFixed(2))
	assert.NotEmpty(t, result.Responses)
	assert.Empty(t, result.Screenshot)

	shop.mux.Lock()
	defer shop.mux.Unlock()
	assert.Empty(t, shop.cart)
}

func TestCartScenarioMismatch(t *testing.T) {
	var (
		mux      sync.Mutex
		messages []string
	)
	discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mux.Lock()
		messages = append(messages, body.Content)
		mux.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer discord.Close()

	shop := &fakeShop{cart: map[string]int{}, totalOffset: 1000}
	session, monitor := launchTestSession(t, shop, discord.URL)

	result, err := RunCartScenario(context.Background(), session, config.Category{Name: "Amor", Path: "/product-category/amor/"}, 1)
	require.NoError(t, err)
	require.NotNil(t, result.Reconciliation)
	assert.False(t, result.Reconciliation.Matches)
	assert.Equal(t, "1000.00", result.Reconciliation.Difference.StringFixed(2))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.CartMismatches.WithLabelValues()))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.ScenarioRunsTotal.WithLabelValues("ok")))

	mux.Lock()
	defer mux.Unlock()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Amor")
}

func TestCartScenarioNotEnoughProducts(t *testing.T) {
	shop := &fakeShop{cart: map[string]int{}}
	session, _ := launchTestSession(t, shop, "")

	result, err := RunCartScenario(context.Background(), session, config.Category{Name: "Amor", Path: "/product-category/amor/"}, 5)
	assert.ErrorIs(t, err, ErrNotEnoughProducts)
	assert.NotEmpty(t, result.Screenshot)
}

func TestCartScenarioBrokenMenuLink(t *testing.T) {
	shop := &fakeShop{cart: map[string]int{}, brokenMenu: true}
	session, _ := launchTestSession(t, shop, "")

	result, err := RunCartScenario(context.Background(), session, config.Category{Name: "Amor", Path: "/product-category/amor/"}, 1)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	assert.Equal(t, "Ramo de Rosas Rojas", result.Added[0].Name)
}

func TestCartScenarioAddToCartRejected(t *testing.T) {
	shop := &fakeShop{cart: map[string]int{}, failAdd: "rosas-rojas"}
	session, monitor := launchTestSession(t, shop, "")

	result, err := RunCartScenario(context.Background(), session, config.Category{Name: "Amor", Path: "/product-category/amor/"}, 1)
	require.ErrorIs(t, err, ErrAddToCartFailed)
	assert.NotEmpty(t, result.Screenshot)
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.ScenarioRunsTotal.WithLabelValues("failed")))

	require.NotEmpty(t, result.Responses)
	assert.Equal(t, http.StatusInternalServerError, result.Responses[0].Status)
}
