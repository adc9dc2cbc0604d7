package kube

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	packhostv1alpha1 "github.com/bayleafwalker/packhost/api/v1alpha1"
	"github.com/bayleafwalker/packhost/injector"
)

// StatusReporter mirrors package state transitions onto the PackageManifest
// a package was discovered from. Packages from other sources are ignored.
type StatusReporter struct {
	Client   client.Client
	Recorder record.EventRecorder
	// Host identifies this process in status.host.
	Host string
	Log  logr.Logger
}

type statusUpdate struct {
	phase     packhostv1alpha1.PackagePhase
	message   string
	condition metav1.Condition
	eventType string
	reason    string
}

func (r *StatusReporter) OnStateChange(ctx context.Context, pkg *injector.Package, from, to injector.State, err error) {
	key, ok := ParseOrigin(pkg.Origin())
	if !ok {
		return
	}
	u, ok := statusFor(pkg, from, to, err)
	if !ok {
		return
	}
	log := r.Log.WithValues("packageManifest", key.String(), "state", to.String())

	var pm packhostv1alpha1.PackageManifest
	if err := r.Client.Get(ctx, key, &pm); err != nil {
		log.Error(err, "failed to get package manifest")
		return
	}
	before := pm.DeepCopy()
	pm.Status.ObservedGeneration = pm.Generation
	pm.Status.Phase = u.phase
	pm.Status.Message = u.message
	pm.Status.Host = r.Host
	u.condition.ObservedGeneration = pm.Generation
	meta.SetStatusCondition(&pm.Status.Conditions, u.condition)
	if err := r.Client.Status().Patch(ctx, &pm, client.MergeFrom(before)); err != nil {
		log.Error(err, "failed to patch package manifest status")
		return
	}
	if u.reason != "" {
		r.recordEventf(&pm, u.eventType, u.reason, "%s", u.message)
	}
}

func statusFor(pkg *injector.Package, from, to injector.State, err error) (statusUpdate, bool) {
	switch to {
	case injector.StateOrdered:
		return statusUpdate{
			phase:   packhostv1alpha1.PackagePhaseResolved,
			message: "Dependencies and versions satisfied",
			condition: metav1.Condition{
				Type:    packhostv1alpha1.ConditionResolved,
				Status:  metav1.ConditionTrue,
				Reason:  "Ordered",
				Message: "Dependencies and versions satisfied",
			},
		}, true
	case injector.StateInitializing:
		return statusUpdate{
			phase:   packhostv1alpha1.PackagePhaseInitializing,
			message: "Running init handlers",
			condition: metav1.Condition{
				Type:    packhostv1alpha1.ConditionReady,
				Status:  metav1.ConditionFalse,
				Reason:  "Initializing",
				Message: "Running init handlers",
			},
		}, true
	case injector.StateReady:
		msg := fmt.Sprintf("Package %s %s is ready", pkg.Name(), pkg.Version())
		return statusUpdate{
			phase:   packhostv1alpha1.PackagePhaseReady,
			message: msg,
			condition: metav1.Condition{
				Type:    packhostv1alpha1.ConditionReady,
				Status:  metav1.ConditionTrue,
				Reason:  "Initialized",
				Message: msg,
			},
			eventType: corev1.EventTypeNormal,
			reason:    "PackageReady",
		}, true
	case injector.StateFailed:
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		if from < injector.StateOrdered {
			return statusUpdate{
				phase:   packhostv1alpha1.PackagePhaseFailed,
				message: msg,
				condition: metav1.Condition{
					Type:    packhostv1alpha1.ConditionResolved,
					Status:  metav1.ConditionFalse,
					Reason:  "ValidationFailed",
					Message: msg,
				},
				eventType: corev1.EventTypeWarning,
				reason:    "ValidationFailed",
			}, true
		}
		return statusUpdate{
			phase:   packhostv1alpha1.PackagePhaseFailed,
			message: msg,
			condition: metav1.Condition{
				Type:    packhostv1alpha1.ConditionReady,
				Status:  metav1.ConditionFalse,
				Reason:  "InitFailed",
				Message: msg,
			},
			eventType: corev1.EventTypeWarning,
			reason:    "InitFailed",
		}, true
	default:
		return statusUpdate{}, false
	}
}

func (r *StatusReporter) recordEventf(obj client.Object, eventType, reason, messageFmt string, args ...any) {
	if r.Recorder == nil || obj == nil {
		return
	}
	r.Recorder.Eventf(obj, eventType, reason, messageFmt, args...)
}
