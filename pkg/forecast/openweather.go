package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunstead/sunstead/pkg/common"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/types"
)

// ErrWeatherDisabled is returned when no OpenWeather API key is configured.
var ErrWeatherDisabled = errors.New("openweather api key not configured")

const defaultGeocodeLimit = 5

// OpenWeather resolves place names and fetches current conditions for
// display next to runs. It is never used for irradiance.
type OpenWeather struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// configuredOpenWeather sets up flags for OpenWeather and returns the
// instance. Without an API key the client stays disabled.
func configuredOpenWeather() *OpenWeather {
	w := &OpenWeather{
		client: common.HTTPClient(15 * time.Second),
	}
	baseURL := lflag.String("openweather-api-url", "https://api.openweathermap.org", "URL for the OpenWeather API")
	apiKey := lflag.String("openweather-api-key", "", "API key for OpenWeather geocoding and conditions (optional)")

	lflag.Do(func() {
		w.baseURL = *baseURL
		w.apiKey = *apiKey
	})

	return w
}

// Validate ensures the configuration is valid.
func (w *OpenWeather) Validate() error {
	if w.baseURL == "" {
		return fmt.Errorf("openweather-api-url is required")
	}
	if _, err := url.Parse(w.baseURL); err != nil {
		return fmt.Errorf("failed to parse openweather url (%s): %w", w.baseURL, err)
	}
	return nil
}

// Enabled reports whether an API key was configured.
func (w *OpenWeather) Enabled() bool {
	return w != nil && w.apiKey != ""
}

// openWeatherPlace is one entry of the geocoding responses.
type openWeatherPlace struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

// Geocode resolves a place name to candidate coordinates.
func (w *OpenWeather) Geocode(ctx context.Context, query string, limit int) ([]types.Location, error) {
	if !w.Enabled() {
		return nil, ErrWeatherDisabled
	}
	if limit < 1 {
		limit = defaultGeocodeLimit
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	return w.fetchPlaces(ctx, "/geo/1.0/direct", params)
}

// ReverseGeocode resolves coordinates to the nearest named place.
func (w *OpenWeather) ReverseGeocode(ctx context.Context, lat, lon float64) ([]types.Location, error) {
	if !w.Enabled() {
		return nil, ErrWeatherDisabled
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("limit", "1")
	return w.fetchPlaces(ctx, "/geo/1.0/reverse", params)
}

func (w *OpenWeather) fetchPlaces(ctx context.Context, path string, params url.Values) ([]types.Location, error) {
	var data []openWeatherPlace
	if err := w.fetch(ctx, path, params, &data); err != nil {
		return nil, err
	}

	locations := make([]types.Location, 0, len(data))
	for _, p := range data {
		locations = append(locations, types.Location{
			Name:    p.Name,
			Country: p.Country,
			State:   p.State,
			Lat:     p.Lat,
			Lon:     p.Lon,
		})
	}
	return locations, nil
}

// openWeatherCurrent is the subset of the current-weather response we read.
type openWeatherCurrent struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

// CurrentWeather fetches current conditions at the coordinates in metric
// units.
func (w *OpenWeather) CurrentWeather(ctx context.Context, lat, lon float64) (types.WeatherConditions, error) {
	if !w.Enabled() {
		return types.WeatherConditions{}, ErrWeatherDisabled
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("units", "metric")

	var data openWeatherCurrent
	if err := w.fetch(ctx, "/data/2.5/weather", params, &data); err != nil {
		return types.WeatherConditions{}, err
	}

	cond := types.WeatherConditions{
		TemperatureC:  data.Main.Temp,
		HumidityPct:   data.Main.Humidity,
		CloudCoverPct: data.Clouds.All,
		WindSpeedMPS:  data.Wind.Speed,
	}
	if len(data.Weather) > 0 {
		cond.Main = data.Weather[0].Main
		cond.Description = data.Weather[0].Description
		cond.Icon = data.Weather[0].Icon
	}
	if data.Sys.Sunrise > 0 {
		cond.Sunrise = time.Unix(data.Sys.Sunrise, 0).UTC()
	}
	if data.Sys.Sunset > 0 {
		cond.Sunset = time.Unix(data.Sys.Sunset, 0).UTC()
	}
	return cond, nil
}

// fetch runs a GET against the OpenWeather API and decodes the JSON body.
// The URL is not logged because the key travels as a query parameter.
func (w *OpenWeather) fetch(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("appid", w.apiKey)
	u := w.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching from openweather", "path", path)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch from openweather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openweather api returned status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
