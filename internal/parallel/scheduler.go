package parallel

import "errors"

// ErrNilPool is returned by ApplyTiles when there is work but no pool to run it.
var ErrNilPool = errors.New("parallel: nil worker pool")

// ApplyTiles partitions a width x height surface into tiles and runs fn once
// per tile on pool. It blocks until every tile has been processed and
// returns the pool's aggregated job error, if any.
//
// fn must only write pixels inside the tile it is given. Under that rule the
// result is independent of tile size and worker count.
// An empty surface is a no-op.
func ApplyTiles(width, height, tileW, tileH int, pool *WorkerPool, fn func(t Tile)) error {
	if fn == nil {
		return nil
	}
	tiles := Partition(width, height, tileW, tileH)
	if len(tiles) == 0 {
		return nil
	}
	if pool == nil {
		return ErrNilPool
	}

	work := make([]func(), len(tiles))
	for i, tile := range tiles {
		work[i] = func() {
			fn(tile)
		}
	}

	return pool.ExecuteAll(work)
}
