package models

// DeploymentMethod identifies the tool that produced a hosting release
type DeploymentMethod string

const (
	DeployedWithGitHubAction DeploymentMethod = "GITHUB_ACTION"
	DeployedWithCLI          DeploymentMethod = "CLI"
	DeployedWithUnknown      DeploymentMethod = "UNKNOWN"
)

// ReleaseType is the Firebase Hosting release type
type ReleaseType string

const (
	ReleaseTypeDeploy   ReleaseType = "DEPLOY"
	ReleaseTypeRollback ReleaseType = "ROLLBACK"
)

// ReleaseUser identifies who created a release
type ReleaseUser struct {
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// Release is a summarized Firebase Hosting release on the live channel
type Release struct {
	ID           string           `json:"id"`
	Hash         string           `json:"hash"`
	DeployedWith DeploymentMethod `json:"deployedWith"`
	Timestamp    int64            `json:"timestamp"` // epoch millis
	Type         ReleaseType      `json:"type"`
	User         ReleaseUser      `json:"user"`
	FileCount    int64            `json:"fileCount"`
	SizeBytes    int64            `json:"sizeBytes"`
	HasExpired   bool             `json:"hasExpired"`
}
