package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kotrzina/flower-cart/pkg/price"
)

//go:embed profiles/*.yaml
var profiles embed.FS

const defaultProfile = "profiles/mundoflor.yaml"

// Profile describes one shop: where it lives, how its prices look
// and which XPath expressions locate things on its pages.
// Every selector is a fallback chain, the first matching expression wins.
type Profile struct {
	Name             string     `yaml:"name"`
	BaseURL          string     `yaml:"base_url"`
	Charset          string     `yaml:"charset"`
	Currency         string     `yaml:"currency"`
	DecimalSeparator string     `yaml:"decimal_separator"`
	StrictPrices     bool       `yaml:"strict_prices"`
	Tolerance        string     `yaml:"tolerance"`
	MinProducts      int        `yaml:"min_products"`
	CartPath         string     `yaml:"cart_path"`
	AddToCartMarker  string     `yaml:"add_to_cart_marker"`
	Categories       []Category `yaml:"categories"`
	TitleNoise       []string   `yaml:"title_noise"`
	Timeouts         Timeouts   `yaml:"timeouts"`
	Selectors        Selectors  `yaml:"selectors"`
}

type Category struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

type Timeouts struct {
	Short  time.Duration `yaml:"short"`
	Medium time.Duration `yaml:"medium"`
	Long   time.Duration `yaml:"long"`
}

type Selectors struct {
	PageTitle []string `yaml:"page_title"`

	ProductCard []string `yaml:"product_card"`
	CardName    []string `yaml:"card_name"` // relative to product card
	CardPrice   []string `yaml:"card_price"`
	CardLink    []string `yaml:"card_link"`

	ProductTitle       []string `yaml:"product_title"`
	ProductPrice       []string `yaml:"product_price"`
	ProductStock       []string `yaml:"product_stock"`
	AddToCart          []string `yaml:"add_to_cart"`
	AddToCartFallback  []string `yaml:"add_to_cart_fallback"`
	QuantityInput      []string `yaml:"quantity_input"`
	CartItem           []string `yaml:"cart_item"`
	CartItemName       []string `yaml:"cart_item_name"` // relative to cart item
	CartItemPrice      []string `yaml:"cart_item_price"`
	CartItemQuantity   []string `yaml:"cart_item_quantity"`
	CartTotal          []string `yaml:"cart_total"`
	CartSubtotal       []string `yaml:"cart_subtotal"`
	CartEmpty          []string `yaml:"cart_empty"`
	RemoveItem         []string `yaml:"remove_item"`
	RemoveItemFallback []string `yaml:"remove_item_fallback"`
}

// LoadProfile reads a profile from path, or the embedded default profile when path is empty.
func LoadProfile(path string) (*Profile, error) {
	var (
		data []byte
		err  error
	)

	if path == "" {
		data, err = profiles.ReadFile(defaultProfile)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read profile: %w", err)
	}

	return ParseProfile(data)
}

// ParseProfile decodes YAML, applies defaults and validates the result.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("could not decode profile: %w", err)
	}

	p.setDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (p *Profile) setDefaults() {
	if p.Tolerance == "" {
		p.Tolerance = "0.01"
	}
	if p.MinProducts == 0 {
		p.MinProducts = 2
	}
	if p.CartPath == "" {
		p.CartPath = "/cart/"
	}
	if p.AddToCartMarker == "" {
		p.AddToCartMarker = "add_to_cart"
	}
	if p.Timeouts.Short == 0 {
		p.Timeouts.Short = 5 * time.Second
	}
	if p.Timeouts.Medium == 0 {
		p.Timeouts.Medium = 10 * time.Second
	}
	if p.Timeouts.Long == 0 {
		p.Timeouts.Long = 20 * time.Second
	}
	if len(p.Selectors.PageTitle) == 0 {
		p.Selectors.PageTitle = []string{"//h1"}
	}
	if len(p.Selectors.ProductTitle) == 0 {
		p.Selectors.ProductTitle = []string{"//h1"}
	}
}

func (p *Profile) Validate() error {
	if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
		return fmt.Errorf("profile %q has invalid base_url: %w", p.Name, err)
	}
	if len(p.Categories) == 0 {
		return fmt.Errorf("profile %q has no categories", p.Name)
	}
	if _, err := price.ParseSeparator(p.DecimalSeparator); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	tolerance, err := decimal.NewFromString(p.Tolerance)
	if err != nil {
		return fmt.Errorf("profile %q has invalid tolerance: %w", p.Name, err)
	}
	if tolerance.IsNegative() {
		return fmt.Errorf("profile %q has negative tolerance %s", p.Name, p.Tolerance)
	}

	required := map[string][]string{
		"product_card": p.Selectors.ProductCard,
		"card_price":   p.Selectors.CardPrice,
		"cart_item":    p.Selectors.CartItem,
		"cart_total":   p.Selectors.CartTotal,
	}
	for name, chain := range required {
		if len(chain) == 0 {
			return fmt.Errorf("profile %q is missing selector %s", p.Name, name)
		}
	}

	return nil
}

// Apply overrides profile values by the environment configuration.
func (p *Profile) Apply(conf *Config) {
	if conf.BaseURL != "" {
		p.BaseURL = conf.BaseURL
	}
	if len(conf.Categories) > 0 {
		p.Categories = conf.Categories
	}
}

// Parser returns the price parser configured by the profile.
func (p *Profile) Parser() price.Parser {
	separator, _ := price.ParseSeparator(p.DecimalSeparator) // validated
	return price.Parser{
		Strict:  p.StrictPrices,
		Decimal: separator,
	}
}

func (p *Profile) ToleranceAmount() decimal.Decimal {
	return decimal.RequireFromString(p.Tolerance) // validated
}

// URL resolves path against the base url.
func (p *Profile) URL(path string) string {
	return strings.TrimSuffix(p.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (p *Profile) CartURL() string {
	return p.URL(p.CartPath)
}

// FindCategory looks a category up by name, ignoring case.
func (p *Profile) FindCategory(name string) (Category, bool) {
	for _, c := range p.Categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}

	return Category{}, false
}
