package types

// Cluster identifies one monitored cluster for a single evaluation cycle.
type Cluster struct {
	ClusterUUID string `json:"clusterUuid"`
	ClusterName string `json:"clusterName"`

	// CCS is the remote cluster alias when the cluster was discovered through
	// cross-cluster search. Empty for local clusters.
	CCS string `json:"ccs,omitempty"`
}
