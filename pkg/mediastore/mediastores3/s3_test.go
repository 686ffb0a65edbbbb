package mediastores3

import "testing"

func TestExtractKey(t *testing.T) {
	store := New(nil, Config{Bucket: "motowork-media", Region: "us-east-1"})

	key, ok := store.ExtractKey("https://motowork-media.s3.us-east-1.amazonaws.com/products/abc.jpg")
	if !ok || key != "products/abc.jpg" {
		t.Fatalf("expected products/abc.jpg, got %q ok=%v", key, ok)
	}

	if _, ok := store.ExtractKey("https://elsewhere.example.com/products/abc.jpg"); ok {
		t.Fatal("expected foreign URLs to be rejected")
	}
}

func TestExtractKeyWithPublicBase(t *testing.T) {
	store := New(nil, Config{Bucket: "motowork-media", Region: "us-east-1", PublicBaseURL: "https://cdn.motowork.co/"})

	key, ok := store.ExtractKey("https://cdn.motowork.co/products/abc.jpg")
	if !ok || key != "products/abc.jpg" {
		t.Fatalf("expected products/abc.jpg, got %q ok=%v", key, ok)
	}

	// The raw bucket URL no longer matches once a CDN base is set.
	if _, ok := store.ExtractKey("https://motowork-media.s3.us-east-1.amazonaws.com/products/abc.jpg"); ok {
		t.Fatal("expected bucket URL to be rejected when a public base is configured")
	}
}
