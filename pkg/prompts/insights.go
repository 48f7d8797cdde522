package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/sub0-labs/funding-oracle/pkg/models"
)

// User messages for the insight prompts. The project data rides in the system
// message, so the user turn only states what to do with it.
const (
	SummaryRequest  = "Please summarize this project."
	AnalysisRequest = "Please proceed with the analysis."
)

// analysisInstructions maps an analysis type to its instruction. Unknown types
// fall back to "general".
var analysisInstructions = map[string]string{
	"comparison":  "Compare these projects and highlight similarities and differences.",
	"trends":      "Identify trends across these projects.",
	"risk":        "Assess potential risks based on these projects.",
	"performance": "Analyze the performance metrics across these projects.",
	"general":     "Provide a general analysis of these projects.",
}

// reportInstructions maps a report type to its instruction. Unknown types fall
// back to "detailed".
var reportInstructions = map[string]string{
	"summary":   "Create a one-page executive summary.",
	"detailed":  "Create a comprehensive detailed report with all relevant sections.",
	"technical": "Create a technical report with deep analysis and metrics.",
}

// NormalizeAnalysisType returns the analysis type that will actually be used.
func NormalizeAnalysisType(analysisType string) string {
	if _, ok := analysisInstructions[analysisType]; ok {
		return analysisType
	}
	return "general"
}

// NormalizeReportType returns the report type that will actually be used.
func NormalizeReportType(reportType string) string {
	if _, ok := reportInstructions[reportType]; ok {
		return reportType
	}
	return "detailed"
}

// BuildQuerySystem renders the system message for free-form questions about a
// single project. The aggregate is embedded as JSON so the model answers from
// the recorded data.
func BuildQuerySystem(sp *models.SponsoredProject) string {
	return fmt.Sprintf(`You are a helpful assistant analyzing grant-funded project data.
You have access to a sponsored project record mirrored to the Arkiv chain-state store.

Project Data:
%s

Please answer questions about this project clearly and concisely.
Use the provided data to give accurate answers.`, projectJSON(sp))
}

// BuildSummarySystem renders the system message for a project summary.
func BuildSummarySystem(sp *models.SponsoredProject) string {
	return fmt.Sprintf(`You are a blockchain data analyst.
Analyze this sponsored project and provide a concise summary highlighting key information.

Project Data:
%s

Provide a clear, professional summary.`, projectJSON(sp))
}

// BuildAnalysisSystem renders the system message for a cross-project analysis.
func BuildAnalysisSystem(projects []models.SponsoredProject, analysisType string) string {
	data, _ := json.MarshalIndent(projects, "", "  ")
	return fmt.Sprintf(`You are a blockchain data analyst specializing in project funding.
Analyze the following %d projects and provide insights.

Projects:
%s

%s`, len(projects), data, analysisInstructions[NormalizeAnalysisType(analysisType)])
}

// BuildReportSystem renders the system message for a project report.
func BuildReportSystem(sp *models.SponsoredProject, reportType string) string {
	return fmt.Sprintf(`You are a professional report writer for grant-funded blockchain projects.
%s

Project Data:
%s

Format the report professionally with clear sections and bullet points.`,
		reportInstructions[NormalizeReportType(reportType)], projectJSON(sp))
}

// ReportRequest renders the user message for a report.
func ReportRequest(reportType string) string {
	return fmt.Sprintf("Generate a %s report for this project.", NormalizeReportType(reportType))
}

func projectJSON(sp *models.SponsoredProject) string {
	data, _ := json.MarshalIndent(sp, "", "  ")
	return string(data)
}
