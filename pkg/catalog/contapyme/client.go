// Package contapyme is the read-only client of the external catalog
// microservice. It answers two questions per sku: the current price and
// whether the product has images, and resolves the image path to a public
// asset URL.
package contapyme

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/errx"
	"github.com/Pikiko14/motowork-products/pkg/ptrx"
)

var contapymeErrors = errx.NewRegistry("CONTAPYME")

var (
	ErrRequestFailed = contapymeErrors.Register("REQUEST_FAILED", errx.TypeExternal, 502, "Contapyme request failed")
	ErrBadResponse   = contapymeErrors.Register("BAD_RESPONSE", errx.TypeExternal, 502, "Contapyme returned an unusable response")
)

// priceListID selects the price list the catalog publishes from.
const priceListID = "1"

// Config configures the contapyme client.
type Config struct {
	// BaseURL is the microservice root, e.g. http://contapyme-ms:3000.
	BaseURL string
	// AssetBaseURL prefixes the image paths the service returns.
	AssetBaseURL string
	// Timeout bounds each request. Zero means 15s.
	Timeout time.Duration
}

// Client calls the contapyme microservice.
type Client struct {
	http      *http.Client
	baseURL   string
	assetBase string
}

// New creates a contapyme client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		assetBase: strings.TrimSuffix(cfg.AssetBaseURL, "/"),
	}
}

// ProductInfo is what the sync cares about from a catalog lookup.
type ProductInfo struct {
	// Price from the published price list, nil when the list is absent.
	Price *float64
	// ImageCount as reported by the basic info block.
	ImageCount int
}

// Wire shapes of the microservice responses. The response is an array of
// envelopes; only the first entry matters.
type productEnvelope struct {
	Respuesta struct {
		Datos struct {
			ListaPrecios []priceEntry `json:"listaprecios"`
			InfoBasica   struct {
				QImagenes string `json:"qimagenes"`
			} `json:"infobasica"`
		} `json:"datos"`
	} `json:"respuesta"`
}

type priceEntry struct {
	ILista  string `json:"ilista"`
	MPrecio string `json:"mprecio"`
}

type imageResponse struct {
	Path string `json:"path"`
}

// GetProduct looks a sku up in the external catalog. A sku the catalog does
// not know yields a zero ProductInfo, not an error.
func (c *Client) GetProduct(ctx context.Context, sku string) (*ProductInfo, error) {
	// Path spelled the way the upstream service exposes it.
	var envelopes []productEnvelope
	if err := c.getJSON(ctx, fmt.Sprintf("%s/contacpime/product/%s", c.baseURL, sku), &envelopes); err != nil {
		return nil, err
	}

	info := &ProductInfo{}
	if len(envelopes) == 0 {
		return info, nil
	}

	datos := envelopes[0].Respuesta.Datos
	for _, entry := range datos.ListaPrecios {
		if entry.ILista != priceListID {
			continue
		}
		price, err := strconv.ParseFloat(entry.MPrecio, 64)
		if err != nil {
			return nil, contapymeErrors.NewWithCause(ErrBadResponse, err).
				WithDetail("sku", sku).
				WithDetail("mprecio", entry.MPrecio)
		}
		info.Price = ptrx.Ptr(price)
		break
	}

	if q := datos.InfoBasica.QImagenes; q != "" {
		count, err := strconv.Atoi(q)
		if err != nil {
			return nil, contapymeErrors.NewWithCause(ErrBadResponse, err).
				WithDetail("sku", sku).
				WithDetail("qimagenes", q)
		}
		info.ImageCount = count
	}

	return info, nil
}

// GetImageURL resolves the sku's image to its public asset URL.
func (c *Client) GetImageURL(ctx context.Context, sku string) (string, error) {
	var resp imageResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/contacpime/product/%s/images", c.baseURL, sku), &resp); err != nil {
		return "", err
	}
	if resp.Path == "" {
		return "", contapymeErrors.New(ErrBadResponse).
			WithDetail("sku", sku).
			WithDetail("reason", "empty image path")
	}
	return c.assetBase + resp.Path, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return contapymeErrors.NewWithCause(ErrRequestFailed, err).WithDetail("url", url)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return contapymeErrors.NewWithCause(ErrRequestFailed, err).WithDetail("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contapymeErrors.New(ErrRequestFailed).
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return contapymeErrors.NewWithCause(ErrBadResponse, err).WithDetail("url", url)
	}
	return nil
}
