// Package prompt renders creative parameters into provider-ready
// instructions. Build is pure: the same inputs always produce the same text.
package prompt

import (
	"strings"

	"rewrite-moment/internal/domain"
)

const defaultScene = "A person in a warm, meaningful moment of their life."

var stagePhrases = map[string]string{
	"teen":      "teenage years, school hallways, close friends, first steps into the world",
	"20s":       "their twenties, campus life, first jobs, love and self-discovery",
	"newlywed":  "newlywed life, a fresh start, building a home together",
	"parenting": "parenthood, family life, days spent with a young child",
}

const stageDefault = "an ordinary day that quietly matters"

var genreStyles = map[string]string{
	"docu":    "observational documentary, natural light, handheld realism",
	"drama":   "emotional drama, soft contrast, lingering shots",
	"comedy":  "light comedy, bright colors, playful energy",
	"melo":    "melodrama, golden hour glow, tender atmosphere",
	"fantasy": "dreamlike fantasy, painterly light, a touch of magic",
}

const genreDefault = "cinematic realism, natural light"

var modePacing = map[string]string{
	"quick":   "a single vivid moment, brisk cuts",
	"story":   "a short narrative arc unfolding across a few beats",
	"trailer": "movie trailer pacing, bold transitions, rising momentum",
}

const modeDefault = "a single vivid moment, brisk cuts"

var distanceFraming = map[string]string{
	"close":  "intimate close-up framing on the face",
	"medium": "balanced medium shot, subject centered",
	"wide":   "wide establishing shot, subject within the scene",
}

const distanceDefault = "balanced medium shot, subject centered"

var endingNotes = map[string]string{
	"happy": "the scene closes on a bright, hopeful note",
	"sad":   "the scene fades out on a quiet, bittersweet note",
	"open":  "the scene ends unresolved, leaving the moment open",
	"twist": "the scene ends on an unexpected turn",
}

const endingDefault = "the scene closes on a bright, hopeful note"

var realismBands = [3]string{
	"stylized, loose interpretation of the photo",
	"grounded and believable, faithful to the photo",
	"photorealistic, true to every detail of the photo",
}

var intensityBands = [3]string{
	"subtle, restrained emotion",
	"clear, expressive emotion",
	"heightened, dramatic emotion",
}

var paceBands = [3]string{
	"slow and contemplative motion",
	"steady, natural motion",
	"fast, energetic motion",
}

const (
	identityClauseSingle = "Preserve the exact identity of the person in the provided photo: the same face, facial structure, skin tone, and hairstyle must appear unchanged. Do not beautify, age, or replace the face."
	identityClausePair   = "Preserve the exact identity of both people from the provided photos: each face, facial structure, skin tone, and hairstyle must appear unchanged. Do not beautify, age, swap, or replace either face."
	negativeForSubjects  = "different person, altered face, distorted facial features, deformed hands, extra limbs, watermark, text overlay"
)

// Band maps a 0-100 slider onto its coarse index: below 40 is low, above 70
// is high, everything between is mid. Out-of-range values clamp.
func Band(v int) int {
	switch {
	case v < 40:
		return 0
	case v > 70:
		return 2
	default:
		return 1
	}
}

func pick(table map[string]string, key, fallback string) string {
	if v, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return v
	}
	return fallback
}

// Build renders the instruction for one pipeline step. The subjects count
// controls the identity-preservation clause; any request with at least one
// subject photo gets one.
func Build(params domain.CreativeParams, step domain.StepKind, subjects int) domain.PromptSpec {
	if step == domain.StepCompose {
		return buildCompose(params, subjects)
	}
	return buildAnimate(params, subjects)
}

func buildAnimate(params domain.CreativeParams, subjects int) domain.PromptSpec {
	parts := []string{}

	scene := strings.TrimSpace(params.Prompt)
	if scene == "" {
		scene = defaultScene
	}
	parts = append(parts, scene)

	parts = append(parts, "Life stage: "+pick(stagePhrases, params.Stage, stageDefault)+".")
	parts = append(parts, "Style: "+pick(genreStyles, params.Genre, genreDefault)+".")
	parts = append(parts, "Pacing: "+pick(modePacing, params.Mode, modeDefault)+".")
	parts = append(parts, "Framing: "+pick(distanceFraming, params.Distance, distanceDefault)+".")

	if theme := strings.TrimSpace(params.MovieTheme); theme != "" {
		parts = append(parts, "Render it in the mood of the film \""+theme+"\".")
	}
	if rewrite := strings.TrimSpace(params.RewriteText); rewrite != "" {
		parts = append(parts, "The moment is rewritten: "+rewrite+".")
	}

	parts = append(parts,
		"Rendering: "+realismBands[Band(params.Sliders.Realism)]+".",
		"Emotion: "+intensityBands[Band(params.Sliders.Intensity)]+".",
		"Motion: "+paceBands[Band(params.Sliders.Pace)]+".",
	)
	parts = append(parts, "Ending: "+pick(endingNotes, params.Ending, endingDefault)+".")

	spec := domain.PromptSpec{}
	if subjects > 0 {
		parts = append(parts, identityClause(subjects))
		spec.NegativeText = negativeForSubjects
	}
	if aspect := strings.TrimSpace(params.AspectRatio); aspect != "" {
		parts = append(parts, "Compose for a "+aspect+" frame.")
	}

	spec.InstructionText = strings.Join(parts, " ")
	return spec
}

func buildCompose(params domain.CreativeParams, subjects int) domain.PromptSpec {
	parts := []string{}
	if subjects >= 2 {
		parts = append(parts, "Combine the two provided photos into one natural photograph of both people together in a single coherent scene, with consistent lighting and perspective.")
	} else {
		parts = append(parts, "Re-stage the provided photo as one natural photograph of the person in a single coherent scene, with consistent lighting and perspective.")
	}

	if scene := strings.TrimSpace(params.Prompt); scene != "" {
		parts = append(parts, "Scene: "+scene+".")
	}
	parts = append(parts, "Setting: "+pick(stagePhrases, params.Stage, stageDefault)+".")
	parts = append(parts, "Style: "+pick(genreStyles, params.Genre, genreDefault)+".")
	parts = append(parts, identityClause(subjects))
	if aspect := strings.TrimSpace(params.AspectRatio); aspect != "" {
		parts = append(parts, "Compose for a "+aspect+" frame.")
	}

	return domain.PromptSpec{
		InstructionText: strings.Join(parts, " "),
		NegativeText:    negativeForSubjects,
	}
}

func identityClause(subjects int) string {
	if subjects >= 2 {
		return identityClausePair
	}
	return identityClauseSingle
}
