package analyzer

// Result is the outcome of scoring one image.
type Result struct {
	Score       float64      `json:"score"`
	Category    Category     `json:"category"`
	Pipeline    PipelineKind `json:"pipeline"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// Diagnostics carries counters useful for debugging a score.
type Diagnostics struct {
	// Dimensions actually analysed, after cropping and resizing
	Width  int `json:"width"`
	Height int `json:"height"`

	// Full pipeline
	Patches         int    `json:"patches,omitempty"`
	RejectedPatches int    `json:"rejected_patches,omitempty"`
	UsedRejected    bool   `json:"used_rejected,omitempty"`
	FallbackFits    int    `json:"fallback_fits,omitempty"`
	Pooling         string `json:"pooling,omitempty"`

	// Pooled patch distance and per-channel noise deviation; the full
	// score is Distance + NoiseWeight*NoiseSigma.
	Distance   float64 `json:"distance,omitempty"`
	NoiseSigma float64 `json:"noise_sigma,omitempty"`

	// Fast pipeline
	ResizeTo int           `json:"resize_to,omitempty"`
	Proxy    *ProxyMetrics `json:"proxy,omitempty"`

	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// ProxyMetrics are the fast pipeline statistics, on the 0..255 scale
// unless noted.
type ProxyMetrics struct {
	LaplacianVariance float64 `json:"laplacian_variance"`
	NoiseSigma        float64 `json:"noise_sigma"`
	Contrast          float64 `json:"contrast"`
	Brightness        float64 `json:"brightness"`
	LocalContrast     float64 `json:"local_contrast"`
	ColorImbalance    float64 `json:"color_imbalance"`
	Saturation        float64 `json:"saturation"` // 0..1
	Proxy             float64 `json:"proxy"`
}
