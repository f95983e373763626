package domain

// ImageBlob is a fully materialized image. Adapters re-encode it into whatever
// transport shape their vendor wants; nothing downstream reaches back to the
// original upload.
type ImageBlob struct {
	Bytes    []byte
	MIMEType string
}

// Sliders are 0-100 intensity controls from the client. The prompt builder
// buckets them into coarse bands, so nearby values render identically.
type Sliders struct {
	Realism   int `json:"realism"`
	Intensity int `json:"intensity"`
	Pace      int `json:"pace"`
}

// CreativeParams carries every user-selectable knob for a generation.
// Enum-ish fields hold free strings; unknown values fall back to fixed
// defaults instead of erroring.
type CreativeParams struct {
	Stage       string
	Genre       string
	Mode        string
	Distance    string
	Ending      string
	MovieTheme  string
	RewriteText string
	Prompt      string
	AspectRatio string
	Sliders     Sliders
}

// PromptSpec is a rendered instruction ready for a provider adapter.
type PromptSpec struct {
	InstructionText string
	NegativeText    string
}

// GenerationRequest is the validated input of one submission.
type GenerationRequest struct {
	PrimaryImage   *ImageBlob
	SecondaryImage *ImageBlob
	Creative       CreativeParams
	Pipeline       PipelineKind
}

// Kind resolves the pipeline plan. A second image always forces the
// compose-then-animate plan regardless of what the caller asked for.
func (r GenerationRequest) Kind() PipelineKind {
	if r.SecondaryImage != nil {
		return PipelineComposeThenAnimate
	}
	if r.Pipeline != "" {
		return r.Pipeline
	}
	return PipelineSingleStepAnimate
}

// Subjects counts the people expected in the output scene.
func (r GenerationRequest) Subjects() int {
	n := 0
	if r.PrimaryImage != nil {
		n++
	}
	if r.SecondaryImage != nil {
		n++
	}
	return n
}
