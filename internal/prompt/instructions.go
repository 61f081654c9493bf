package prompt

// Instruction texts per node kind. The structural context is appended by
// the assembler; the instructions only fix the shape and register of the
// output document.

const moduleInstruction = `You are a senior software engineer writing internal documentation.
Document the source module described below. Produce well-structured Markdown with these sections:

## Overview
A short paragraph explaining the module's purpose and role.

## Classes
A "### <ClassName>" subsection per class: its responsibility, parameters, and public methods. Omit the section if there are no classes.

## Functions
A "### <function_name>" subsection per top-level function: what it does, its parameters and return value. Omit the section if there are no functions.

## Integration
How this module is used by or depends on the rest of the project.

## Dependencies
The notable imports and what they are used for.

Be precise and factual. Describe only what the structural information supports; do not invent behavior.`

const packageInstruction = `You are a senior software engineer writing internal documentation.
Document the package (directory) described below, based on the one-line summaries of its contained modules and sub-packages. Produce well-structured Markdown with these sections:

## Overview
What this package groups together and why.

## Components
A bulleted walkthrough of the contained modules and sub-packages, expanding briefly on each summary.

## How it fits together
How the pieces relate and the typical flow through the package.

Be precise and factual. Do not invent components that are not listed.`

const overviewInstruction = `You are a senior software engineer writing internal documentation.
Write the top-level overview page for the project described below, based on the one-line summaries of its top-level packages and modules. Produce well-structured Markdown with these sections:

## Project Overview
Two or three paragraphs on what the project does and who it is for.

## Architecture
The major parts and how they interact.

## Getting Oriented
Where a new reader should start.

Be precise and factual. Do not invent functionality that the summaries do not support.`
