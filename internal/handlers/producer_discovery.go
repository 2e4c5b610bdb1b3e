package handlers

import (
	"context"
	"encoding/json"

	"github.com/oakmoss-dev/enrichqueue/internal/clients/discogs"
	"github.com/oakmoss-dev/enrichqueue/internal/clients/genius"
	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
	"github.com/oakmoss-dev/enrichqueue/internal/ratelimit"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
	"github.com/oakmoss-dev/enrichqueue/internal/worker"
)

type producerDiscoveryMetadata struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
}

// ProducerDiscovery implements producer_discovery: looks up
// writer/producer credits for one track on both Genius and Discogs,
// normalizes each name, and merges the result into the Producer
// table -- the terminal node of the discovery DAG.
type ProducerDiscovery struct {
	genius         *genius.Client
	discogs        *discogs.Client
	geniusGate     *ratelimit.Gate
	discogsGate    *ratelimit.Gate
	geniusThrottle *worker.Throttler
	discogsThrottle *worker.Throttler
	producers      store.ProducerStore
}

func NewProducerDiscovery(
	geniusClient *genius.Client,
	discogsClient *discogs.Client,
	geniusGate *ratelimit.Gate,
	discogsGate *ratelimit.Gate,
	geniusThrottle *worker.Throttler,
	discogsThrottle *worker.Throttler,
	producers store.ProducerStore,
) *ProducerDiscovery {
	return &ProducerDiscovery{
		genius:          geniusClient,
		discogs:         discogsClient,
		geniusGate:      geniusGate,
		discogsGate:     discogsGate,
		geniusThrottle:  geniusThrottle,
		discogsThrottle: discogsThrottle,
		producers:       producers,
	}
}

func (h *ProducerDiscovery) Handle(ctx context.Context, metadata json.RawMessage) error {
	var meta producerDiscoveryMetadata
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return err
	}

	var credits []credit

	geniusCredits, err := h.geniusCredits(ctx, meta.ArtistName, meta.TrackName)
	if err != nil {
		return err
	}
	credits = append(credits, geniusCredits...)

	discogsCredits, err := h.discogsCredits(ctx, meta.ArtistName, meta.TrackName)
	if err != nil {
		return err
	}
	credits = append(credits, discogsCredits...)

	for _, c := range credits {
		canonical, alias := store.NormalizeProducerName(c.name)
		if canonical == "" {
			continue
		}
		sourceCredit, err := json.Marshal(map[string]string{
			"source":    c.source,
			"role":      c.role,
			"raw_name":  c.name,
			"track_id":  meta.TrackID,
			"track":     meta.TrackName,
			"artist":    meta.ArtistName,
		})
		if err != nil {
			return err
		}
		if err := h.producers.UpsertProducerCredit(ctx, canonical, alias, sourceCredit); err != nil {
			return err
		}
	}
	return nil
}

type credit struct {
	name   string
	role   string
	source string
}

func (h *ProducerDiscovery) geniusCredits(ctx context.Context, artist, title string) ([]credit, error) {
	if err := h.geniusGate.Check(ctx, genius.APIName, "/search"); err != nil {
		return nil, err
	}
	if h.geniusThrottle != nil {
		if err := h.geniusThrottle.Acquire(ctx); err != nil {
			return nil, err
		}
		defer h.geniusThrottle.Release()
	}

	found, result, err := h.genius.SearchCredits(ctx, artist, title)
	if result.RequestsLimit > 0 {
		if updateErr := h.geniusGate.Update(ctx, genius.APIName, "/search", result.RequestsRemaining, result.RequestsLimit, result.ResetAt, ""); updateErr != nil {
			return nil, updateErr
		}
	}
	if err != nil {
		metrics.IncRateLimitThrottled(genius.APIName, "/search")
		return nil, classify(err)
	}

	out := make([]credit, 0, len(found))
	for _, c := range found {
		out = append(out, credit{name: c.Name, role: c.Role, source: "genius"})
	}
	return out, nil
}

func (h *ProducerDiscovery) discogsCredits(ctx context.Context, artist, title string) ([]credit, error) {
	if err := h.discogsGate.Check(ctx, discogs.APIName, "/database/search"); err != nil {
		return nil, err
	}
	if h.discogsThrottle != nil {
		if err := h.discogsThrottle.Acquire(ctx); err != nil {
			return nil, err
		}
		defer h.discogsThrottle.Release()
	}

	found, result, err := h.discogs.SearchCredits(ctx, artist, title)
	if result.RequestsLimit > 0 {
		if updateErr := h.discogsGate.Update(ctx, discogs.APIName, "/database/search", result.RequestsRemaining, result.RequestsLimit, result.ResetAt, ""); updateErr != nil {
			return nil, updateErr
		}
	}
	if err != nil {
		metrics.IncRateLimitThrottled(discogs.APIName, "/database/search")
		return nil, classify(err)
	}

	out := make([]credit, 0, len(found))
	for _, c := range found {
		out = append(out, credit{name: c.Name, role: c.Role, source: "discogs"})
	}
	return out, nil
}
