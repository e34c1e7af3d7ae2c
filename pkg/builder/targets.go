package builder

import "github.com/kinecosystem/localnet/pkg/compose"

// Defaults for the two images of the local network.
const (
	DefaultCoreRepo     = "https://github.com/kinecosystem/stellar-core.git"
	DefaultCoreBranch   = "kinecosystem/master"
	DefaultCoreCheckout = "volumes/stellar-core-git"

	DefaultAPIRepo     = "https://github.com/kinecosystem/go.git"
	DefaultAPIBranch   = "kinecosystem/master"
	DefaultAPICheckout = "volumes/go-git"

	DefaultLDFlagsPackage = "github.com/kinecosystem/go/support/app"
	DefaultAPIOutput      = "./horizon"
	DefaultAPIMain        = "./services/horizon"
)

// CoreTarget describes the core node image. An empty image falls back to the
// name compose gives the core service.
func CoreTarget(repo, branch, checkoutPath, image string) BuildTarget {
	return BuildTarget{
		Name:           "core",
		RepoURL:        repo,
		Branch:         branch,
		CheckoutPath:   checkoutPath,
		ImageSubstring: image,
		BuildService:   compose.ServiceCoreBuild,
		ImageService:   compose.ServiceCore,
	}
}

// APITarget describes the api service image.
func APITarget(repo, branch, checkoutPath, image string) BuildTarget {
	return BuildTarget{
		Name:           "api",
		RepoURL:        repo,
		Branch:         branch,
		CheckoutPath:   checkoutPath,
		ImageSubstring: image,
		BuildService:   compose.ServiceAPIBuild,
		ImageService:   compose.ServiceAPI,
	}
}
