package registry

import "time"

// seedCreatedAt keeps the built-in catalog fully deterministic.
var seedCreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Built-in cluster ids. The intent classifier maps intent types onto these.
const (
	ClusterResearch   = "research"
	ClusterCoding     = "coding"
	ClusterDevops     = "devops"
	ClusterUIUX       = "uiux"
	ClusterAnalysis   = "analysis"
	ClusterEvaluation = "evaluation"
)

func builtinClusters() []*Cluster {
	return []*Cluster{
		{ID: ClusterResearch, Name: "Research", Description: "Information gathering, documentation and comparison"},
		{ID: ClusterCoding, Name: "Coding", Description: "Code generation, refactoring, review and testing"},
		{ID: ClusterDevops, Name: "DevOps", Description: "Deployment, CI pipelines and infrastructure"},
		{ID: ClusterUIUX, Name: "UI/UX", Description: "Interface design, wireframing and styling"},
		{ID: ClusterAnalysis, Name: "Analysis", Description: "Data analysis, metrics and reporting"},
		{ID: ClusterEvaluation, Name: "Evaluation", Description: "Quality evaluation and strategic planning"},
	}
}

func builtinAgents() []*Agent {
	all := []Level{LevelSimple, LevelMedium, LevelComplex}
	return []*Agent{
		{
			ID: "research_agent_v1", Role: "Research Specialist", Cluster: ClusterResearch,
			Skills: []string{"research", "documentation", "comparison"},
			Levels: all, Confidence: 0.85, AvgExecSeconds: 2.0, CreatedAt: seedCreatedAt,
		},
		{
			ID: "web_search_agent_v1", Role: "Web Search Specialist", Cluster: ClusterResearch,
			Skills: []string{"search", "retrieval"},
			Levels: []Level{LevelSimple, LevelMedium}, Confidence: 0.78, AvgExecSeconds: 1.5, CreatedAt: seedCreatedAt,
		},
		{
			ID: "code_agent_v2", Role: "Senior Code Generator", Cluster: ClusterCoding,
			Skills: []string{"codegen", "refactoring", "debugging"},
			Levels: all, Confidence: 0.92, AvgExecSeconds: 3.0, CreatedAt: seedCreatedAt,
		},
		{
			ID: "code_agent_v1", Role: "Code Generator", Cluster: ClusterCoding,
			Skills: []string{"codegen", "testing"},
			Levels: []Level{LevelSimple, LevelMedium}, Confidence: 0.80, AvgExecSeconds: 2.5, CreatedAt: seedCreatedAt,
		},
		{
			ID: "review_agent_v1", Role: "Code Reviewer", Cluster: ClusterCoding,
			Skills: []string{"review", "quality"},
			Levels: []Level{LevelMedium, LevelComplex}, Confidence: 0.83, AvgExecSeconds: 2.0, CreatedAt: seedCreatedAt,
		},
		{
			ID: "devops_agent_v1", Role: "DevOps Engineer", Cluster: ClusterDevops,
			Skills: []string{"deployment", "ci", "monitoring"},
			Levels: all, Confidence: 0.86, AvgExecSeconds: 4.0, CreatedAt: seedCreatedAt,
		},
		{
			ID: "infra_agent_v1", Role: "Infrastructure Engineer", Cluster: ClusterDevops,
			Skills: []string{"provisioning", "networking"},
			Levels: []Level{LevelMedium, LevelComplex}, Confidence: 0.79, AvgExecSeconds: 5.0, CreatedAt: seedCreatedAt,
		},
		{
			ID: "design_agent_v1", Role: "UI/UX Designer", Cluster: ClusterUIUX,
			Skills: []string{"wireframes", "prototyping", "styling"},
			Levels: all, Confidence: 0.81, AvgExecSeconds: 3.5, CreatedAt: seedCreatedAt,
		},
		{
			ID: "analysis_agent_v1", Role: "Data Analyst", Cluster: ClusterAnalysis,
			Skills: []string{"statistics", "visualization", "reporting"},
			Levels: all, Confidence: 0.84, AvgExecSeconds: 3.0, CreatedAt: seedCreatedAt,
		},
		{
			ID: "evaluation_agent_v1", Role: "Quality Evaluator", Cluster: ClusterEvaluation,
			Skills: []string{"scoring", "validation"},
			Levels: all, Confidence: 0.82, AvgExecSeconds: 1.8, CreatedAt: seedCreatedAt,
		},
		{
			ID: "plan_agent_v1", Role: "Strategic Planner", Cluster: ClusterEvaluation,
			Skills: []string{"roadmap", "prioritization"},
			Levels: all, Confidence: 0.80, AvgExecSeconds: 2.2, CreatedAt: seedCreatedAt,
		},
	}
}
