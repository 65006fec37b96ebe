package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dashstat/internal/jsonx"
)

const maxErrorBody = 1024

// forecastResponse mirrors /data/2.5/forecast. Pointers mark fields the
// upstream sometimes omits.
type forecastResponse struct {
	List []forecastEntry `json:"list"`
}

type forecastEntry struct {
	DtTxt string `json:"dt_txt"`
	Main  *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// currentResponse mirrors the parts of /data/2.5/weather we read.
type currentResponse struct {
	Name string `json:"name"`
	Sys  *struct {
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
}

func (s *Service) endpointURL(path string) (string, error) {
	base, err := url.Parse(strings.TrimRight(s.opts.Endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(s.opts.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(s.opts.Lon, 'f', -1, 64))
	q.Set("units", s.opts.Units)
	q.Set("appid", s.opts.APIKey)

	base.Path += path
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (s *Service) getJSON(ctx context.Context, path string, out any) error {
	u, err := s.endpointURL(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("get %s: status %d body: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := jsonx.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *Service) fetchForecast(ctx context.Context) (forecastResponse, error) {
	var out forecastResponse
	err := s.getJSON(ctx, "/data/2.5/forecast", &out)
	return out, err
}

func (s *Service) fetchCurrent(ctx context.Context) (currentResponse, error) {
	var out currentResponse
	err := s.getJSON(ctx, "/data/2.5/weather", &out)
	return out, err
}
