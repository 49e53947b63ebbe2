package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLocationFromIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":45.2671,"longitude":19.8335,"city":"Novi Sad","region":"Vojvodina","country_name":"Serbia"}`))
	}))
	defer srv.Close()

	r := NewWithEndpoints(srv.URL, srv.URL)
	place, err := r.LocationFromIP(context.Background())
	if err != nil {
		t.Fatalf("location from ip: %v", err)
	}
	if place.City != "Novi Sad" {
		t.Errorf("expected city Novi Sad, got %q", place.City)
	}
	if place.DisplayName != "Novi Sad, Vojvodina, Serbia" {
		t.Errorf("unexpected display name %q", place.DisplayName)
	}
}

func TestLocationFromIPWithoutCoordinatesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"city":"Nowhere"}`))
	}))
	defer srv.Close()

	r := NewWithEndpoints(srv.URL, srv.URL)
	if _, err := r.LocationFromIP(context.Background()); err == nil {
		t.Error("expected error when response has no coordinates")
	}
}

func TestReverseGeocodePrefersCityThenTown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("addressdetails") != "1" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"address":{"town":"Sremski Karlovci","state":"Vojvodina","country":"Serbia"}}`))
	}))
	defer srv.Close()

	r := NewWithEndpoints(srv.URL, srv.URL)
	place, err := r.ReverseGeocode(context.Background(), 45.2, 19.93)
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if place.City != "Sremski Karlovci" {
		t.Errorf("expected town fallback, got %q", place.City)
	}
	if place.DisplayName != "Sremski Karlovci, Vojvodina, Serbia" {
		t.Errorf("unexpected display name %q", place.DisplayName)
	}
	if place.Latitude != 45.2 || place.Longitude != 19.93 {
		t.Errorf("coordinates not echoed back: %+v", place)
	}
}

func TestReverseGeocodeWithoutAddressFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := NewWithEndpoints(srv.URL, srv.URL)
	if _, err := r.ReverseGeocode(context.Background(), 1, 2); err == nil {
		t.Error("expected error when response has no address")
	}
}

func TestReverseGeocodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewWithEndpoints(srv.URL, srv.URL)
	if _, err := r.ReverseGeocode(context.Background(), 1, 2); err == nil {
		t.Error("expected error for non-200 status")
	}
}
