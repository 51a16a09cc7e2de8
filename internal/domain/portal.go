package domain

// Job is a job posting as returned by the recommendation endpoints.
type Job struct {
	ID                ID       `json:"id"`
	Title             string   `json:"jobTitle"`
	CompanyName       string   `json:"companyname"`
	Recruiter         *Company `json:"jobRecruiter,omitempty"`
	Location          string   `json:"location"`
	EmployeeType      string   `json:"employeeType"`
	Remote            bool     `json:"remote"`
	MinimumExperience float64  `json:"minimumExperience"`
	MaximumExperience float64  `json:"maximumExperience"`
	MinSalary         float64  `json:"minSalary"`
	MaxSalary         float64  `json:"maxSalary"`
	CreationDate      string   `json:"creationDate"`
}

type Company struct {
	CompanyName string `json:"companyname"`
}

// Company returns the posting's company name, falling back to the recruiter's.
func (j Job) Company() string {
	if j.CompanyName != "" {
		return j.CompanyName
	}
	if j.Recruiter != nil {
		return j.Recruiter.CompanyName
	}
	return ""
}

// JobPage is one page of the job browser. Page is zero based.
type JobPage struct {
	Jobs       []Job      `json:"jobs"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Promoted   bool       `json:"promoted"`
	Links      []PageLink `json:"links"`
}

// PageLink is an entry of the pagination bar. Number is one based; Gap marks an elided range.
type PageLink struct {
	Number  int  `json:"number,omitempty"`
	Current bool `json:"current,omitempty"`
	Gap     bool `json:"gap,omitempty"`
}

// Video is a recommended video.
type Video struct {
	ID    ID     `json:"videoId"`
	Title string `json:"title"`
	URL   string `json:"s3url"`
}

// VideoCarousel is the list of recommended videos and the number of carousel pages they fill.
type VideoCarousel struct {
	Videos []Video `json:"videos"`
	Pages  int     `json:"pages"`
}

// Leaderboard ranks applicants by their best recorded score on a question, highest first.
type Leaderboard struct {
	QuestionID ID                 `json:"questionId"`
	Entries    []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	ApplicantID ID  `json:"applicantId"`
	Score       int `json:"score"`
}
