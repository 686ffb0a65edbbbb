package contapyme_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Pikiko14/motowork-products/pkg/catalog/contapyme"
)

func newClient(t *testing.T, handler http.Handler) *contapyme.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return contapyme.New(contapyme.Config{
		BaseURL:      server.URL,
		AssetBaseURL: "https://pymes.motowork.co/",
	})
}

func TestGetProduct_ParsesPriceAndImageCount(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacpime/product/CB190R" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `[{"respuesta":{"datos":{
			"listaprecios":[{"ilista":"4","mprecio":"99"},{"ilista":"1","mprecio":"1500000"}],
			"infobasica":{"qimagenes":"3"}}}}]`)
	}))

	info, err := client.GetProduct(context.Background(), "CB190R")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if info.Price == nil || *info.Price != 1500000 {
		t.Fatalf("expected price 1500000 from list 1, got %v", info.Price)
	}
	if info.ImageCount != 3 {
		t.Fatalf("expected 3 images, got %d", info.ImageCount)
	}
}

func TestGetProduct_UnknownSKUYieldsZeroInfo(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))

	info, err := client.GetProduct(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if info.Price != nil || info.ImageCount != 0 {
		t.Fatalf("expected zero info, got %+v", info)
	}
}

func TestGetProduct_MissingPriceListKeepsNilPrice(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"respuesta":{"datos":{"listaprecios":[{"ilista":"4","mprecio":"99"}],"infobasica":{"qimagenes":"0"}}}}]`)
	}))

	info, err := client.GetProduct(context.Background(), "CB190R")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if info.Price != nil {
		t.Fatalf("expected nil price when list 1 is absent, got %v", *info.Price)
	}
}

func TestGetImageURL_PrefixesAssetBase(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacpime/product/CB190R/images" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"path":"/images/cb190r.jpg"}`)
	}))

	url, err := client.GetImageURL(context.Background(), "CB190R")
	if err != nil {
		t.Fatalf("get image url: %v", err)
	}
	if url != "https://pymes.motowork.co/images/cb190r.jpg" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestGetProduct_ServerErrorSurfaces(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	if _, err := client.GetProduct(context.Background(), "CB190R"); err == nil {
		t.Fatal("expected an error on non-200 response")
	}
}
