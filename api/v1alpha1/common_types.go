package v1alpha1

// PackagePhase summarizes where a package is in the host's startup sequence.
type PackagePhase string

const (
	PackagePhasePending      PackagePhase = "Pending"
	PackagePhaseResolved     PackagePhase = "Resolved"
	PackagePhaseInitializing PackagePhase = "Initializing"
	PackagePhaseReady        PackagePhase = "Ready"
	PackagePhaseFailed       PackagePhase = "Failed"
)

const (
	// ConditionResolved is True once dependencies and versions are checked
	// and the package has a place in the initialization order.
	ConditionResolved = "Resolved"
	// ConditionReady is True once the package's init handlers succeeded.
	ConditionReady = "Ready"
)
