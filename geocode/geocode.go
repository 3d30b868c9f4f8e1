package geocode

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"googlemaps.github.io/maps"
)

const reverseTimeout = 5 * time.Second

// mapsClient is a singleton maps client instance.
var (
	mapsClient *maps.Client
	clientOnce sync.Once
)

// InitMapsClient initializes and returns a singleton Google Maps client.
func InitMapsClient() (*maps.Client, error) {
	var err error
	clientOnce.Do(func() {
		apiKey := os.Getenv("MAPS_CREDENTIALS")
		if apiKey == "" {
			err = fmt.Errorf("MAPS_CREDENTIALS environment variable not set")
			return
		}
		mapsClient, err = maps.NewClient(maps.WithAPIKey(apiKey))
		if err != nil {
			log.Fatalf("Failed to create maps client: %v", err)
		}
	})
	return mapsClient, err
}

// ReverseCountry resolves the country name at the given coordinates. The
// lookup has a bounded timeout; callers fall back to "Unknown" on error.
func ReverseCountry(ctx context.Context, lat, lng float64) (string, error) {
	client, err := InitMapsClient()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, reverseTimeout)
	defer cancel()

	req := &maps.GeocodingRequest{
		LatLng:     &maps.LatLng{Lat: lat, Lng: lng},
		ResultType: []string{"country"},
	}

	results, err := client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no reverse geocode results for %f,%f", lat, lng)
	}

	for _, component := range results[0].AddressComponents {
		for _, t := range component.Types {
			if t == "country" {
				return component.LongName, nil
			}
		}
	}
	return results[0].FormattedAddress, nil
}
