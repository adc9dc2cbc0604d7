package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PackageManifest publishes a package's manifest into a namespace so hosts
// running with the cluster source can discover it.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=pm
// +kubebuilder:printcolumn:name="Package",type=string,JSONPath=`.spec.name`
// +kubebuilder:printcolumn:name="Version",type=string,JSONPath=`.spec.version`
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type PackageManifest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PackageManifestSpec   `json:"spec"`
	Status PackageManifestStatus `json:"status,omitempty"`
}

type PackageManifestSpec struct {
	// Name is the package name. Defaults to metadata.name.
	// +optional
	Name    string `json:"name,omitempty"`
	Version string `json:"version"`
	// +optional
	Description string `json:"description,omitempty"`
	// Dependencies maps a package or capability name to a semver range.
	// +optional
	Dependencies map[string]string `json:"dependencies,omitempty"`
	// +optional
	Keywords []string `json:"keywords,omitempty"`
	// EntryPoint is the catalog name of the package's factory. Defaults to
	// the package name.
	// +optional
	EntryPoint string `json:"entryPoint,omitempty"`
}

type PackageManifestStatus struct {
	ObservedGeneration int64        `json:"observedGeneration,omitempty"`
	Phase              PackagePhase `json:"phase,omitempty"`
	Message            string       `json:"message,omitempty"`
	// Host is the identity of the packhost process that last reported.
	Host       string             `json:"host,omitempty"`
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
type PackageManifestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []PackageManifest `json:"items"`
}

func init() {
	SchemeBuilder.Register(&PackageManifest{}, &PackageManifestList{})
}
