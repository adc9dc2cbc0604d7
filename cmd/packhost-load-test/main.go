// Command packhost-load-test creates a layered graph of PackageManifest
// resources and measures how long a packhost running with kube discovery
// takes to report every one of them Ready.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/controller-runtime/pkg/client"

	packhostv1alpha1 "github.com/bayleafwalker/packhost/api/v1alpha1"
	"github.com/bayleafwalker/packhost/internal/manifest"
	"github.com/bayleafwalker/packhost/modules/kvstore"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(packhostv1alpha1.AddToScheme(scheme))
}

func main() {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	} else {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	flag.StringVar(&kubeconfig, "kubeconfig", kubeconfig, "absolute path to the kubeconfig file")

	var (
		numPackages int
		layerWidth  int
		namespace   string
		selector    string
		timeout     time.Duration
	)
	flag.IntVar(&numPackages, "packages", 20, "Number of PackageManifests to create")
	flag.IntVar(&layerWidth, "width", 4, "Packages per dependency layer")
	flag.StringVar(&namespace, "namespace", "default", "Namespace to create packages in")
	flag.StringVar(&selector, "label", "packhost.io/host=load-test", "Label (key=value) set on every package")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for every package to be Ready")
	flag.Parse()

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		log.Fatalf("Error building kubeconfig: %v", err)
	}
	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}

	prefix := fmt.Sprintf("load-test-%d", time.Now().Unix())
	pkgs, err := layered(prefix, namespace, selector, numPackages, layerWidth)
	if err != nil {
		log.Fatalf("Error building packages: %v", err)
	}

	fmt.Printf("Starting load test: %d packages (width %d) in namespace %s\n", len(pkgs), layerWidth, namespace)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	for _, pm := range pkgs {
		if err := k8sClient.Create(ctx, pm); err != nil {
			log.Fatalf("Error creating package %s: %v", pm.Name, err)
		}
	}

	var wg sync.WaitGroup
	latencies := make(chan time.Duration, len(pkgs))
	for _, pm := range pkgs {
		wg.Add(1)
		go func(key client.ObjectKey) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					fmt.Printf("Timeout waiting for package %s\n", key.Name)
					return
				case <-time.After(time.Second):
					var current packhostv1alpha1.PackageManifest
					if err := k8sClient.Get(ctx, key, &current); err != nil {
						continue
					}
					switch current.Status.Phase {
					case packhostv1alpha1.PackagePhaseReady:
						latency := time.Since(start)
						latencies <- latency
						fmt.Printf("Package %s ready in %v\n", key.Name, latency)
						return
					case packhostv1alpha1.PackagePhaseFailed:
						fmt.Printf("Package %s failed: %s\n", key.Name, current.Status.Message)
						return
					}
				}
			}
		}(client.ObjectKeyFromObject(pm))
	}

	wg.Wait()
	close(latencies)
	total := time.Since(start)

	var sum, worst time.Duration
	count := 0
	for l := range latencies {
		sum += l
		worst = max(worst, l)
		count++
	}
	if count == 0 {
		fmt.Printf("Load test completed in %v. No packages became ready.\n", total)
		os.Exit(1)
	}
	fmt.Printf("Load test completed in %v. %d/%d ready, avg %v, slowest %v\n",
		total, count, len(pkgs), sum/time.Duration(count), worst)
	if count < len(pkgs) {
		os.Exit(1)
	}
}

// layered builds n kvstore-backed packages in layers of width. Every package
// depends on all packages of the layer before it.
func layered(prefix, namespace, label string, n, width int) ([]*packhostv1alpha1.PackageManifest, error) {
	if n < 1 || width < 1 {
		return nil, fmt.Errorf("packages and width must be positive, got %d and %d", n, width)
	}
	key, value, err := splitLabel(label)
	if err != nil {
		return nil, err
	}

	out := make([]*packhostv1alpha1.PackageManifest, 0, n)
	for i := 0; i < n; i++ {
		layer := i / width
		deps := map[string]string{}
		if layer > 0 {
			for j := (layer - 1) * width; j < layer*width; j++ {
				deps[packageName(prefix, j)] = "^1.0.0"
			}
		}
		name := packageName(prefix, i)
		out = append(out, &packhostv1alpha1.PackageManifest{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: namespace,
				Labels:    map[string]string{key: value},
			},
			Spec: packhostv1alpha1.PackageManifestSpec{
				Version:      "1.0.0",
				Keywords:     []string{manifest.MarkerKeyword},
				Dependencies: deps,
				EntryPoint:   kvstore.EntryPoint,
			},
		})
	}
	return out, nil
}

func packageName(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

func splitLabel(label string) (string, string, error) {
	key, value, ok := strings.Cut(label, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("label %q: want key=value", label)
	}
	return key, value, nil
}
