package config

// StorageConfig configures the remote media store and the local staging area.
type StorageConfig struct {
	// Mode selects the media store provider: "s3" or "local".
	Mode string

	// S3 settings, used when Mode is "s3".
	Bucket string
	Region string
	// PublicBaseURL overrides the default https://<bucket>.s3.<region>.amazonaws.com
	// prefix when assets are served through a CDN.
	PublicBaseURL string

	// StagingDir is where multipart uploads are staged before the worker
	// pushes them to the media store.
	StagingDir string

	// Folder is the default remote folder for product media.
	Folder string
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Mode:          getEnv("STORAGE_MODE", "s3"),
		Bucket:        getEnv("AWS_BUCKET", "motowork-products"),
		Region:        getEnv("AWS_REGION", "us-east-1"),
		PublicBaseURL: getEnv("MEDIA_PUBLIC_BASE_URL", ""),
		StagingDir:    getEnv("UPLOAD_DIR", "./uploads"),
		Folder:        getEnv("MEDIA_FOLDER", "products"),
	}
}

// ContapymeConfig configures the read-only external catalog API.
type ContapymeConfig struct {
	// BaseURL is the contapyme microservice root, e.g. https://ms.example.com.
	BaseURL string

	// AssetBaseURL prefixes image paths returned by the API to build the
	// final public asset URL.
	AssetBaseURL string
}

func loadContapymeConfig() ContapymeConfig {
	return ContapymeConfig{
		BaseURL:      getEnv("CONTAPYME_MS_API_URL", ""),
		AssetBaseURL: getEnv("CONTAPYME_ASSET_BASE_URL", "https://pymes.motowork.co"),
	}
}
