package lifecycle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCityPool(t *testing.T) {
	t.Run("parses name country and coordinates", func(t *testing.T) {
		cities, err := ParseCityPool([]string{"Paris, France,48.8566,2.3522", " Mumbai , India , 19.0760 , 72.8777 "})
		require.NoError(t, err)
		require.Len(t, cities, 2)
		assert.Equal(t, "Paris", cities[0].Name)
		assert.Equal(t, "France", cities[0].Country)
		assert.InDelta(t, 48.8566, cities[0].Latitude, 0.0001)
		assert.Equal(t, "Mumbai", cities[1].Name)
		assert.InDelta(t, 72.8777, cities[1].Longitude, 0.0001)
	})

	t.Run("blank entries are skipped", func(t *testing.T) {
		cities, err := ParseCityPool([]string{"", "  ", "Paris, France,48.8566,2.3522"})
		require.NoError(t, err)
		assert.Len(t, cities, 1)
	})

	t.Run("malformed entries fail loudly", func(t *testing.T) {
		_, err := ParseCityPool([]string{"Paris,France"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 4")

		_, err = ParseCityPool([]string{"Paris,France,north,2.35"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad latitude")
	})
}

func TestIdentityPool(t *testing.T) {
	entries := []string{
		"Paris, France,48.8566,2.3522",
		"Mumbai, India,19.0760,72.8777",
		"New York, USA,40.7128,-74.0060",
	}

	t.Run("nearest city wins when coordinates are known", func(t *testing.T) {
		pool, err := newIdentityPool(nil, entries, rand.New(rand.NewSource(1)))
		require.NoError(t, err)

		lat, lon := 19.2, 72.9
		city := pool.pickCity(&lat, &lon)
		require.NotNil(t, city)
		assert.Equal(t, "Mumbai", city.Name)
	})

	t.Run("missing coordinates draw a random pool city", func(t *testing.T) {
		pool, err := newIdentityPool(nil, entries, rand.New(rand.NewSource(1)))
		require.NoError(t, err)

		city := pool.pickCity(nil, nil)
		require.NotNil(t, city)
		assert.Contains(t, []string{"Paris", "Mumbai", "New York"}, city.Name)
	})

	t.Run("empty pools pick nothing", func(t *testing.T) {
		pool, err := newIdentityPool(nil, nil, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.Nil(t, pool.pickName())
		assert.Nil(t, pool.pickCity(nil, nil))
	})

	t.Run("names come from the trimmed pool", func(t *testing.T) {
		pool, err := newIdentityPool([]string{" Emma ", ""}, nil, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		name := pool.pickName()
		require.NotNil(t, name)
		assert.Equal(t, "Emma", *name)
	})
}
