package domain

const (
	EventNameSubmissionRecorded = "submission.recorded"
	EventNameJobSaved           = "job.saved"
	EventNameVideoWatched       = "video.watched"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSubmissionRecorded struct {
	Submission Submission
}

func (EventSubmissionRecorded) Name() string { return EventNameSubmissionRecorded }

func (e EventSubmissionRecorded) Applicant() ID { return e.Submission.ApplicantID }

type EventJobSaved struct {
	ApplicantID ID
	JobID       ID
}

func (EventJobSaved) Name() string { return EventNameJobSaved }

func (e EventJobSaved) Applicant() ID { return e.ApplicantID }

type EventVideoWatched struct {
	ApplicantID ID
	VideoID     ID
}

func (EventVideoWatched) Name() string { return EventNameVideoWatched }

func (e EventVideoWatched) Applicant() ID { return e.ApplicantID }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
