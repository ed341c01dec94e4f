package content

// Tab is one section of the project information panel.
type Tab struct {
	ID          string
	Title       string
	Heading     string
	Description string
	Sections    []Section
}

type Section struct {
	Heading string
	Intro   string
	Ordered bool
	Items   []Item
	// Code holds monospace lines, e.g. a file listing.
	Code []CodeLine
}

type Item struct {
	Label string
	Text  string
	URL   string
}

type CodeLine struct {
	Text    string
	Comment string
}

// TrainingSetting is one row of the fixed training configuration card.
type TrainingSetting struct {
	Name  string
	Value string
}

// ModelSummary describes the simulated model produced by a finished run.
type ModelSummary struct {
	Name     string
	Size     string
	Classes  string
	Accuracy string
}

const (
	Title   = "Lane Pilot Pothole Guard"
	Tagline = "Advanced driver assistance system with lane detection and pothole avoidance"
)

func TrainingSettings() []TrainingSetting {
	return []TrainingSetting{
		{"Model Type", "YOLOv8-small"},
		{"Epochs", "50"},
		{"Batch Size", "16"},
		{"Learning Rate", "0.001"},
	}
}

func TrainedModel() ModelSummary {
	return ModelSummary{
		Name:     "lane_pilot_model_v1.pt",
		Size:     "14.2 MB",
		Classes:  "Lanes, Vehicles, Pedestrians, Potholes",
		Accuracy: "89.7% (simulated)",
	}
}

// ProjectTabs returns the About, Technical and Resources tabs in order.
func ProjectTabs() []Tab {
	return []Tab{
		{
			ID:          "about",
			Title:       "About",
			Heading:     Title,
			Description: "Advanced driver assistance system for lane detection and pothole avoidance",
			Sections: []Section{
				{
					Intro: "This project demonstrates an AI-powered driver assistance system that combines:",
					Items: texts(
						"Real-time lane detection and steering guidance",
						"Object detection for road hazards",
						"Pothole detection with emergency brake recommendation",
						"Visual annotations showing system decisions",
					),
				},
				{
					Heading: "How to use:",
					Ordered: true,
					Items: texts(
						"Upload a driving video using the file uploader",
						"Watch as the system analyzes the road conditions frame by frame",
						"Observe lane detection and steering recommendations",
						"Notice alerts when potholes are detected",
					),
				},
			},
		},
		{
			ID:          "technical",
			Title:       "Technical",
			Heading:     "Technical Details",
			Description: "Implementation details and technologies used",
			Sections: []Section{
				{
					Heading: "Core Technologies:",
					Items: []Item{
						{Label: "YOLOv8", Text: "Used for lane and object detection"},
						{Label: "OpenCV", Text: "Simulated SLAM for pothole detection using grayscale thresholding and contours"},
						{Label: "Python", Text: "Backend processing pipeline"},
						{Label: "Go", Text: "Web server and playback simulation"},
					},
				},
				{
					Heading: "Project Structure:",
					Code: []CodeLine{
						{"main.py", "Main processing pipeline"},
						{"pothole_detector.py", "Pothole detection module"},
						{"requirements.txt", "Python dependencies"},
						{"README.md", "Project documentation"},
					},
				},
				{
					Heading: "Algorithm Flow:",
					Ordered: true,
					Items: texts(
						"Video is processed frame by frame",
						"YOLOv8 detects lanes and objects, determining initial steering",
						"OpenCV-based pothole detection runs in parallel",
						"If pothole is detected within threshold, steering is overridden",
						"Annotated frames are compiled into output video",
					),
				},
			},
		},
		{
			ID:          "resources",
			Title:       "Resources",
			Heading:     "Additional Resources",
			Description: "Sample datasets, code references, and helpful tools",
			Sections: []Section{
				{
					Heading: "Sample Video Datasets:",
					Items: []Item{
						{Text: "Berkeley DeepDrive Dataset (BDD100K)", URL: "https://bdd-data.berkeley.edu/"},
						{Text: "Cityscapes Dataset", URL: "https://www.cityscapes-dataset.com/"},
						{Text: "KITTI Road Dataset", URL: "http://www.cvlibs.net/datasets/kitti/eval_road.php"},
						{Text: "Indian Driving Dataset (IDD)", URL: "https://idd.insaan.iiit.ac.in/"},
					},
				},
				{
					Heading: "GitHub Repositories:",
					Items:   texts("Ultralytics YOLOv8", "Awesome Lane Detection", "Road Damage Detection"),
				},
				{
					Heading: "Tutorials:",
					Items: texts(
						"Getting Started with YOLOv8",
						"Lane Detection with OpenCV",
						"Pothole Detection using Computer Vision",
					),
				},
				{
					Heading: "Papers:",
					Items: texts(
						"YOLOv8: State-of-the-Art Object Detection",
						"SLAM Techniques for Road Surface Analysis",
					),
				},
			},
		},
	}
}

func texts(lines ...string) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{Text: l}
	}
	return items
}
