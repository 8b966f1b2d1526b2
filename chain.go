package exfat

// ClusterChain is a lazy, non-restartable traversal over the clusters of
// one chain. It is used like a scanner: call Next until it returns false,
// then check Err to tell a normal terminator from a chain fault.
//
// Each successful step yields a cluster whose FAT entry links onward; the
// cluster holding the chain terminator ends the traversal without being
// yielded, so a chain whose very first entry is the terminator yields
// nothing. Faults surface in-band: a link to a bad cluster produces
// *BadClusterError naming the cluster that held the link, a value that is
// not a cluster address produces *InvalidChainLinkError, and a walk longer
// than the cluster heap could chain produces *ChainTooLongError.
type ClusterChain struct {
	fat *Fat

	startingCluster uint32
	current         uint32
	previous        uint32

	cluster uint32
	steps   uint32
	done    bool
	err     error
}

// NewClusterChain begins a traversal at the given cluster, normally a
// directory's or file's first-cluster field. Concurrent traversals over the
// same Fat are independent.
func NewClusterChain(fat *Fat, startingClusterNumber uint32) *ClusterChain {
	return &ClusterChain{
		fat:             fat,
		startingCluster: startingClusterNumber,
		current:         startingClusterNumber,
		previous:        startingClusterNumber,
	}
}

// Next advances the traversal one step. It returns true when a cluster was
// yielded and false when the chain has ended, for any reason.
func (cc *ClusterChain) Next() bool {
	if cc.done == true {
		return false
	}

	if cc.current < 2 || cc.current >= cc.fat.EntryCount() {
		cc.err = &InvalidChainLinkError{LeadingCluster: cc.previous, Link: cc.current}
		cc.done = true

		return false
	}

	e := cc.fat.Entry(cc.current)

	if e.IsLast() == true {
		cc.done = true
		return false
	}

	if e.IsBad() == true {
		cc.err = &BadClusterError{LeadingCluster: cc.previous, BadCluster: cc.current}
		cc.done = true

		return false
	}

	cc.steps++
	if cc.steps > cc.fat.ClusterCount()+1 {
		cc.err = &ChainTooLongError{StartingCluster: cc.startingCluster, Steps: cc.steps}
		cc.done = true

		return false
	}

	cc.cluster = cc.current
	cc.previous = cc.current
	cc.current = e.NextCluster()

	return true
}

// Cluster returns the cluster yielded by the last successful Next.
func (cc *ClusterChain) Cluster() uint32 {
	return cc.cluster
}

// Err returns the chain fault that ended the traversal, if any. A chain
// that reached its terminator leaves this nil.
func (cc *ClusterChain) Err() error {
	return cc.err
}
