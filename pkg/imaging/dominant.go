package imaging

import (
	"image"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

const (
	// Clusters is the k of the k-means colour quantisation.
	Clusters = 5
	// MaxSamples bounds the number of pixels fed to k-means.
	MaxSamples = 4096
	// Seed pins the centroid initialisation so results are reproducible.
	Seed = 42

	maxIterations = 300
	tolerance     = 1e-4
	alphaCutoff   = 128

	nearWhite          = 230
	secondaryMinShare  = 0.10
	slotPantsHeuristic = "pants"
)

// Cluster is one k-means centroid and the number of samples assigned to it.
type Cluster struct {
	Colour colour.RGB
	Count  int
}

// DominantColour returns the representative colour of img. For pants that
// come out predominantly near-white (usually the photo background) the
// second most populous cluster is used when it holds more than a tenth of
// the primary's samples.
func DominantColour(img image.Image, slot string) (colour.RGB, error) {
	clusters, err := Quantize(img, Clusters)
	if err != nil {
		return colour.RGB{}, err
	}
	primary := clusters[0]
	if slot == slotPantsHeuristic && len(clusters) > 1 && isNearWhite(primary.Colour) {
		second := clusters[1]
		if float64(second.Count) > secondaryMinShare*float64(primary.Count) {
			return second.Colour, nil
		}
	}
	return primary.Colour, nil
}

// Quantize runs k-means over the opaque pixels of a thumbnail of img and
// returns the clusters ordered by population, largest first.
func Quantize(img image.Image, k int) ([]Cluster, error) {
	points := samplePixels(img)
	if len(points) == 0 {
		return nil, appErrors.Clone(appErrors.ErrColourExtraction, "image has no opaque pixels")
	}
	if distinct := countDistinct(points, k); distinct < k {
		k = distinct
	}

	centroids, assignment, ok := kmeans(points, k, rand.New(rand.NewPCG(Seed, Seed)))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrImageDecode, "colour clustering did not converge")
	}

	counts := make([]int, len(centroids))
	for _, c := range assignment {
		counts[c]++
	}
	clusters := make([]Cluster, 0, len(centroids))
	for i, c := range centroids {
		if counts[i] == 0 {
			continue
		}
		clusters = append(clusters, Cluster{Colour: toRGB(c), Count: counts[i]})
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Count > clusters[j].Count })
	if len(clusters) == 0 {
		return nil, appErrors.Clone(appErrors.ErrColourExtraction, "no colour clusters found")
	}
	return clusters, nil
}

func samplePixels(img image.Image) [][]float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	if w*h > MaxSamples {
		scale := math.Sqrt(float64(MaxSamples) / float64(w*h))
		w = max(int(float64(w)*scale), 1)
		h = max(int(float64(h)*scale), 1)
	}
	thumb := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(thumb, thumb.Bounds(), img, bounds, draw.Src, nil)

	points := make([][]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := thumb.NRGBAAt(x, y)
			if px.A < alphaCutoff {
				continue
			}
			points = append(points, []float64{float64(px.R), float64(px.G), float64(px.B)})
		}
	}
	return points
}

// countDistinct counts distinct colours in points, stopping at limit.
func countDistinct(points [][]float64, limit int) int {
	seen := make(map[[3]float64]struct{}, len(points))
	for _, p := range points {
		seen[[3]float64{p[0], p[1], p[2]}] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

// kmeans clusters points with k-means++ seeding and Lloyd iterations.
func kmeans(points [][]float64, k int, rng *rand.Rand) ([][]float64, []int, bool) {
	centroids := seedCentroids(points, k, rng)
	assignment := make([]int, len(points))

	for iter := 0; iter < maxIterations; iter++ {
		for i, p := range points {
			assignment[i] = nearest(p, centroids)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, 3)
		}
		for i, p := range points {
			floats.Add(sums[assignment[i]], p)
			counts[assignment[i]]++
		}

		shift := 0.0
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			shift = math.Max(shift, floats.Distance(centroids[c], sums[c], 2))
			centroids[c] = sums[c]
		}
		if shift <= tolerance {
			for i, p := range points {
				assignment[i] = nearest(p, centroids)
			}
			return centroids, assignment, true
		}
	}
	return centroids, assignment, false
}

func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.IntN(len(points))]
	centroids = append(centroids, append([]float64(nil), first...))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		for i, p := range points {
			d := floats.Distance(p, centroids[nearest(p, centroids)], 2)
			dist[i] = d * d
		}
		total := floats.Sum(dist)
		if total == 0 {
			break
		}
		target := rng.Float64() * total
		idx := len(points) - 1
		acc := 0.0
		for i, d := range dist {
			acc += d
			if acc >= target && d > 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), points[idx]...))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := floats.Distance(p, c, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func toRGB(c []float64) colour.RGB {
	ch := func(v float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(255, v)))) }
	return colour.RGB{R: ch(c[0]), G: ch(c[1]), B: ch(c[2])}
}

func isNearWhite(c colour.RGB) bool {
	return c.R >= nearWhite && c.G >= nearWhite && c.B >= nearWhite
}
