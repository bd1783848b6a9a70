package sevnup

import "github.com/dgryski/go-farm"

// vnodeForKey computes the deterministic vnode assignment for key under a
// ring of totalVNodes partitions. It must produce bit-identical results
// across processes and releases: the hash is FarmHash-32, reduced modulo
// totalVNodes.
func vnodeForKey(key string, totalVNodes int) int {
	h := farm.Hash32([]byte(key))
	return int(h % uint32(totalVNodes))
}
