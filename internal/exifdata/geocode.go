package exifdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// defaultGeocodeEndpoint is the public Nominatim instance. Their usage
// policy requires a real User-Agent, hence the explicit client identifier.
const (
	defaultGeocodeEndpoint  = "https://nominatim.openstreetmap.org"
	defaultGeocodeUserAgent = "s3-photo-frame/1.0"
	geocodeTimeout          = 5 * time.Second
)

// GeocodeConfig holds reverse-geocoding settings.
//
// It is organized to take advantage of TOML parsing, however this package
// does not handle parsing and has no expectation on how it will be
// initialized.
type GeocodeConfig struct {
	Disabled  bool
	Endpoint  string
	UserAgent string
}

// Geocoder resolves coordinates into a human-readable place name.
type Geocoder struct {
	conf  GeocodeConfig
	httpc *http.Client
}

// NewGeocoder returns a Geocoder, or nil when geocoding is disabled.
func NewGeocoder(conf GeocodeConfig) *Geocoder {
	if conf.Disabled {
		return nil
	}
	if conf.Endpoint == "" {
		conf.Endpoint = defaultGeocodeEndpoint
	}
	if conf.UserAgent == "" {
		conf.UserAgent = defaultGeocodeUserAgent
	}
	return &Geocoder{
		conf:  conf,
		httpc: &http.Client{Timeout: geocodeTimeout},
	}
}

// Reverse performs a single lookup. Failures are returned to the caller, who
// is expected to degrade gracefully rather than retry.
func (g *Geocoder) Reverse(ctx context.Context, lat, long float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("zoom", "10")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(long, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.conf.Endpoint+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", g.conf.UserAgent)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var body struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Address     struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return placeName(body.Address.City, body.Address.Town, body.Address.Village,
		body.Address.State, body.Address.Country, body.Name, body.DisplayName), nil
}

// placeName picks the most specific locality available, suffixed with the
// country when known.
func placeName(city, town, village, state, country, name, displayName string) string {
	locality := city
	if locality == "" {
		locality = town
	}
	if locality == "" {
		locality = village
	}
	if locality == "" {
		locality = state
	}
	switch {
	case locality != "" && country != "":
		return locality + ", " + country
	case locality != "":
		return locality
	case country != "":
		return country
	case name != "":
		return name
	}
	return displayName
}
