package app

import "userdeck/internal/store"

func sampleSubmissions() []store.NewSubmission {
	samples := []struct {
		name, hint, dob, idNumber, idType, seed string
	}{
		{"Alice Johnson", "woman face", "1990-05-15", "X1234567", "Passport", "alice"},
		{"Bob Williams", "man portrait", "1985-09-22", "Y8765432", "Driving License", "bob"},
		{"Charlie Brown", "person glasses", "2000-01-30", "Z5432167", "ID Card", "charlie"},
		{"Diana Prince", "woman smiling", "1992-11-08", "A1122334", "Passport", "diana"},
		{"Ethan Hunt", "man action", "1978-07-12", "B9988776", "ID Card", "ethan"},
	}

	out := make([]store.NewSubmission, 0, len(samples))
	for _, sample := range samples {
		out = append(out, store.NewSubmission{
			Name:        sample.name,
			SourceDB:    "PostgreSQL",
			Image:       "https://picsum.photos/seed/" + sample.seed + "/200/200",
			ImageHint:   sample.hint,
			DateOfBirth: sample.dob,
			IDType:      sample.idType,
			IDNumber:    sample.idNumber,
			IDImage:     "https://picsum.photos/seed/" + sample.seed + "-id/400/250",
			Selfie:      "https://picsum.photos/seed/" + sample.seed + "-selfie/200/200",
			Status:      "pending",
			Reference:   "KYC-" + sample.idNumber,
		})
	}
	return out
}
